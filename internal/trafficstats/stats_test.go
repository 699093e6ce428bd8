package trafficstats

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	t    *testing.T
	root string
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sys", "class", "net"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proc", "uid_stat"), 0o755))
	return &fakeHost{t: t, root: root}
}

func (h *fakeHost) iface(name string, counters map[Counter]string) {
	h.t.Helper()
	dir := filepath.Join(h.root, "sys", "class", "net", name, "statistics")
	require.NoError(h.t, os.MkdirAll(dir, 0o755))
	for c, v := range counters {
		require.NoError(h.t, os.WriteFile(filepath.Join(dir, string(c)), []byte(v), 0o644))
	}
}

func (h *fakeHost) removeIface(name string) {
	h.t.Helper()
	require.NoError(h.t, os.RemoveAll(filepath.Join(h.root, "sys", "class", "net", name)))
}

func (h *fakeHost) uid(uid int32, file, v string) {
	h.t.Helper()
	dir := filepath.Join(h.root, "proc", "uid_stat", strconv.Itoa(int(uid)))
	require.NoError(h.t, os.MkdirAll(dir, 0o755))
	require.NoError(h.t, os.WriteFile(filepath.Join(dir, file), []byte(v), 0o644))
}

func (h *fakeHost) stats(opts ...Option) *Stats {
	base := []Option{WithRoot(h.root), WithPlatformSupport(true)}
	return New(append(base, opts...)...)
}

func TestScenarioFromSysfs(t *testing.T) {
	h := newFakeHost(t)
	h.iface("lo", map[Counter]string{TxBytes: "999\n"})
	h.iface("rmnet0", map[Counter]string{TxBytes: "100\n"})
	h.iface("rmnet1", map[Counter]string{TxBytes: "50\n"})
	h.iface("wlan0", map[Counter]string{TxBytes: "10\n"})
	s := h.stats()

	assert.Equal(t, int64(160), s.TotalTxBytes())
	assert.Equal(t, int64(150), s.MobileTxBytes())
}

func TestTotalTracksInterfaceSet(t *testing.T) {
	h := newFakeHost(t)
	h.iface("eth0", map[Counter]string{RxPackets: "7\n"})
	h.iface("wlan0", map[Counter]string{RxPackets: "5\n"})
	s := h.stats()
	require.Equal(t, int64(12), s.TotalRxPackets())

	h.iface("usb0", map[Counter]string{RxPackets: "30\n"})
	assert.Equal(t, int64(42), s.TotalRxPackets())

	h.removeIface("eth0")
	assert.Equal(t, int64(35), s.TotalRxPackets())
}

func TestLoopbackNeverCounted(t *testing.T) {
	for _, name := range []string{"lo", "lo0", "loopback7"} {
		t.Run(name, func(t *testing.T) {
			h := newFakeHost(t)
			h.iface(name, map[Counter]string{TxPackets: "123\n"})
			s := h.stats()
			assert.Equal(t, int64(-1), s.TotalTxPackets())

			h.iface("eth0", map[Counter]string{TxPackets: "1\n"})
			assert.Equal(t, int64(1), s.TotalTxPackets())
		})
	}
}

func TestHiddenEntriesSkipped(t *testing.T) {
	h := newFakeHost(t)
	h.iface(".hidden", map[Counter]string{RxBytes: "500\n"})
	h.iface("eth0", map[Counter]string{RxBytes: "2\n"})
	assert.Equal(t, int64(2), h.stats().TotalRxBytes())
}

func TestEmptyVersusZero(t *testing.T) {
	h := newFakeHost(t)
	s := h.stats()
	assert.Equal(t, int64(-1), s.TotalTxBytes(), "no interfaces")

	h.iface("eth0", nil)
	assert.Equal(t, int64(-1), s.TotalTxBytes(), "interface without counter file")

	h.iface("eth0", map[Counter]string{TxBytes: "0\n"})
	assert.Equal(t, int64(0), s.TotalTxBytes(), "idle interface")
}

func TestNegativeCounterIgnored(t *testing.T) {
	h := newFakeHost(t)
	h.iface("eth0", map[Counter]string{TxBytes: "-4\n"})
	h.iface("eth1", map[Counter]string{TxBytes: "6\n"})
	assert.Equal(t, int64(6), h.stats().TotalTxBytes())
}

func TestMissingNetDir(t *testing.T) {
	var logs bytes.Buffer
	s := New(
		WithRoot(filepath.Join(t.TempDir(), "nope")),
		WithPlatformSupport(true),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	assert.Equal(t, int64(-1), s.TotalRxBytes())
	assert.Contains(t, logs.String(), "can't list interfaces")
}

func TestMobileUsesRadioAggregate(t *testing.T) {
	h := newFakeHost(t)
	h.iface("rmnet0", map[Counter]string{RxBytes: "0\n"})
	h.iface("ppp0", map[Counter]string{TxPackets: "77\n", RxBytes: "88\n"})
	h.iface("wlan0", map[Counter]string{RxBytes: "1000\n"})
	assert.Equal(t, int64(0), h.stats().MobileRxBytes())
}

func TestMobileFallback(t *testing.T) {
	h := newFakeHost(t)
	h.iface("wlan0", map[Counter]string{TxBytes: "1000\n"})
	s := h.stats()
	assert.Equal(t, int64(-1), s.MobileTxBytes(), "no radio and no ppp0")

	h.iface("ppp0", map[Counter]string{
		TxPackets: "11\n",
		RxPackets: "22\n",
		TxBytes:   "33\n",
		RxBytes:   "44\n",
	})

	t.Run("legacy reads tx_packets for every counter", func(t *testing.T) {
		s := h.stats()
		assert.Equal(t, int64(11), s.MobileTxPackets())
		assert.Equal(t, int64(11), s.MobileRxPackets())
		assert.Equal(t, int64(11), s.MobileTxBytes())
		assert.Equal(t, int64(11), s.MobileRxBytes())
	})

	t.Run("matching reads the requested counter", func(t *testing.T) {
		s := h.stats(WithFallbackMode(FallbackMatching))
		assert.Equal(t, int64(11), s.MobileTxPackets())
		assert.Equal(t, int64(22), s.MobileRxPackets())
		assert.Equal(t, int64(33), s.MobileTxBytes())
		assert.Equal(t, int64(44), s.MobileRxBytes())
	})

	t.Run("radio without counter file falls back", func(t *testing.T) {
		h.iface("rmnet0", nil)
		assert.Equal(t, int64(11), h.stats().MobileRxBytes())
	})
}

func TestUIDStats(t *testing.T) {
	h := newFakeHost(t)
	h.uid(10001, "tcp_rcv", "12345\n")
	h.uid(10001, "tcp_snd", "678\n")
	s := h.stats()

	assert.Equal(t, int64(12345), s.UIDRxBytes(10001))
	assert.Equal(t, int64(678), s.UIDTxBytes(10001))
	assert.Equal(t, int64(-1), s.UIDRxBytes(424242))
	assert.Equal(t, int64(-1), s.UIDTxBytes(-1))
	assert.Equal(t, int64(-1), s.UIDTxBytes(math.MinInt32))
}

func TestUnsupportedPlatform(t *testing.T) {
	h := newFakeHost(t)
	h.iface("rmnet0", map[Counter]string{TxBytes: "5\n"})
	h.uid(1, "tcp_rcv", "5\n")
	var logs bytes.Buffer
	s := New(
		WithRoot(h.root),
		WithPlatformSupport(false),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	assert.False(t, s.Supported())
	assert.Equal(t, int64(-1), s.MobileTxBytes())
	assert.Equal(t, int64(-1), s.TotalTxBytes())
	assert.Equal(t, int64(-1), s.UIDRxBytes(1))
	assert.Empty(t, logs.String())
}

func TestConcurrentCallers(t *testing.T) {
	h := newFakeHost(t)
	h.iface("rmnet0", map[Counter]string{TxBytes: "100\n"})
	h.iface("wlan0", map[Counter]string{TxBytes: "10\n"})
	s := h.stats()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, int64(110), s.TotalTxBytes())
				assert.Equal(t, int64(100), s.MobileTxBytes())
			}
		}()
	}
	wg.Wait()
}

func TestParseFallbackMode(t *testing.T) {
	m, ok := ParseFallbackMode("")
	assert.True(t, ok)
	assert.Equal(t, FallbackLegacy, m)

	m, ok = ParseFallbackMode(" Matching ")
	assert.True(t, ok)
	assert.Equal(t, FallbackMatching, m)

	_, ok = ParseFallbackMode("fixed")
	assert.False(t, ok)
}

package bridge

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"trafficstats-agent/internal/trafficstats"
)

// newScenarioTable fakes a host with lo, two radio interfaces, wlan0 and
// one uid entry.
func newScenarioTable(t *testing.T) *trafficstats.Table {
	t.Helper()
	root := t.TempDir()
	counters := map[string]map[string]string{
		"lo":     {"tx_bytes": "999"},
		"rmnet0": {"tx_bytes": "100", "rx_bytes": "7"},
		"rmnet1": {"tx_bytes": "50"},
		"wlan0":  {"tx_bytes": "10", "rx_bytes": "3"},
	}
	for iface, files := range counters {
		dir := filepath.Join(root, "sys", "class", "net", iface, "statistics")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for name, v := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(v+"\n"), 0o644))
		}
	}
	uidDir := filepath.Join(root, "proc", "uid_stat", strconv.Itoa(10001))
	require.NoError(t, os.MkdirAll(uidDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uidDir, "tcp_rcv"), []byte("12345\n"), 0o644))

	return trafficstats.NewTable(trafficstats.New(
		trafficstats.WithRoot(root),
		trafficstats.WithPlatformSupport(true),
	))
}

package trafficstats

import (
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const (
	loopbackPrefix = "lo"
	radioPrefix    = "rmnet"
	fallbackIface  = "ppp0"
)

// Counter names a per-interface statistics file under <iface>/statistics.
type Counter string

const (
	TxPackets Counter = "tx_packets"
	RxPackets Counter = "rx_packets"
	TxBytes   Counter = "tx_bytes"
	RxBytes   Counter = "rx_bytes"
)

// FallbackMode selects which ppp0 counter the mobile queries read when no
// rmnet interface reports a value.
type FallbackMode int

const (
	// FallbackLegacy always reads ppp0 tx_packets, whatever was asked for.
	FallbackLegacy FallbackMode = iota
	// FallbackMatching reads the ppp0 counter matching the request.
	FallbackMatching
)

func ParseFallbackMode(s string) (FallbackMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return FallbackLegacy, true
	case "matching":
		return FallbackMatching, true
	default:
		return FallbackLegacy, false
	}
}

// Stats reads traffic counters from the kernel pseudo-filesystems. It holds
// no mutable state and every call re-reads the files.
type Stats struct {
	logger    *slog.Logger
	netDir    string
	uidDir    string
	fallback  FallbackMode
	supported bool
}

type Option func(*Stats)

// WithRoot points the reader at a host root other than "/", e.g. a container
// mount of the host filesystem.
func WithRoot(root string) Option {
	return func(s *Stats) {
		s.netDir = filepath.Join(root, "sys", "class", "net")
		s.uidDir = filepath.Join(root, "proc", "uid_stat")
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stats) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithFallbackMode(m FallbackMode) Option {
	return func(s *Stats) { s.fallback = m }
}

func WithPlatformSupport(ok bool) Option {
	return func(s *Stats) { s.supported = ok }
}

// PlatformSupported reports whether this host exposes sysfs and procfs.
func PlatformSupported() bool {
	return runtime.GOOS == "linux" || runtime.GOOS == "android"
}

func New(opts ...Option) *Stats {
	s := &Stats{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		netDir:    "/sys/class/net",
		uidDir:    "/proc/uid_stat",
		supported: PlatformSupported(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stats) NetClassDir() string { return s.netDir }

func (s *Stats) Supported() bool { return s.supported }

func (s *Stats) MobileTxPackets() int64 { return s.mobile(TxPackets) }
func (s *Stats) MobileRxPackets() int64 { return s.mobile(RxPackets) }
func (s *Stats) MobileTxBytes() int64   { return s.mobile(TxBytes) }
func (s *Stats) MobileRxBytes() int64   { return s.mobile(RxBytes) }

func (s *Stats) TotalTxPackets() int64 { return s.total(TxPackets) }
func (s *Stats) TotalRxPackets() int64 { return s.total(RxPackets) }
func (s *Stats) TotalTxBytes() int64   { return s.total(TxBytes) }
func (s *Stats) TotalRxBytes() int64   { return s.total(RxBytes) }

// UIDRxBytes returns TCP bytes received by uid, -1 if unknown.
func (s *Stats) UIDRxBytes(uid int32) int64 {
	return s.readNumber(s.uidPath(uid, "tcp_rcv"))
}

// UIDTxBytes returns TCP bytes sent by uid, -1 if unknown.
func (s *Stats) UIDTxBytes(uid int32) int64 {
	return s.readNumber(s.uidPath(uid, "tcp_snd"))
}

// Mobile stats are polled far more often than totals. Interfaces come and
// go at runtime, so the directory is listed on every call.
func (s *Stats) mobile(c Counter) int64 {
	if v := s.sumInterfaces(c, isRadio); v >= 0 {
		return v
	}
	fc := TxPackets
	if s.fallback == FallbackMatching {
		fc = c
	}
	return s.readNumber(s.counterPath(fallbackIface, fc))
}

func (s *Stats) total(c Counter) int64 {
	return s.sumInterfaces(c, nil)
}

func (s *Stats) counterPath(iface string, c Counter) string {
	return filepath.Join(s.netDir, iface, "statistics", string(c))
}

func (s *Stats) uidPath(uid int32, file string) string {
	return filepath.Join(s.uidDir, strconv.FormatInt(int64(uid), 10), file)
}

func isRadio(name string) bool {
	return strings.HasPrefix(name, radioPrefix)
}

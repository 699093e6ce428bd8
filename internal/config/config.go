package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"trafficstats-agent/internal/trafficstats"
)

type StreamMode string

const (
	StreamModeNone      StreamMode = "none"
	StreamModeGRPC      StreamMode = "grpc"
	StreamModeWebSocket StreamMode = "websocket"
	HardcodedVersion    string     = "V0.3"
)

type Config struct {
	NodeID                 string
	Hostname               string
	FSRoot                 string
	MobileFallback         trafficstats.FallbackMode
	ForcePlatformSupport   bool
	DisablePlatformSupport bool
	WatchUIDs              []int32
	HTTPListenAddr         string
	GRPCListenAddr         string
	ProbeListenAddr        string
	SnapshotInterval       time.Duration
	HealthInterval         time.Duration
	ShutdownTimeout        time.Duration
	StreamMode             StreamMode
	BackendGRPCAddr        string
	BackendWSURL           string
	BackendToken           string
	GRPCSnapshotMethod     string
	AgentVersion           string
	TLSEnabled             bool
	TLSSkipVerify          bool
	TLSCAPath              string
	TLSCertPath            string
	TLSKeyPath             string
	LogJSON                bool
	LogLevel               string
	WebSocketWriteTimeout  time.Duration
	WebSocketPingInterval  time.Duration
	CollectorErrorBackoff  time.Duration
}

func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	fallback, ok := trafficstats.ParseFallbackMode(env("TRAFFICSTATS_MOBILE_FALLBACK", "legacy"))
	if !ok {
		return Config{}, fmt.Errorf("unsupported TRAFFICSTATS_MOBILE_FALLBACK %q", os.Getenv("TRAFFICSTATS_MOBILE_FALLBACK"))
	}
	uids, err := parseUIDList(env("TRAFFICSTATS_WATCH_UIDS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("TRAFFICSTATS_WATCH_UIDS: %w", err)
	}

	cfg := Config{
		NodeID:                 env("TRAFFICSTATS_NODE_ID", hostname),
		Hostname:               hostname,
		FSRoot:                 env("TRAFFICSTATS_FS_ROOT", "/"),
		MobileFallback:         fallback,
		ForcePlatformSupport:   envBool("TRAFFICSTATS_FORCE_PLATFORM_SUPPORT", false),
		DisablePlatformSupport: envBool("TRAFFICSTATS_DISABLE_PLATFORM_SUPPORT", false),
		WatchUIDs:              uids,
		HTTPListenAddr:         envAddr("TRAFFICSTATS_HTTP_ADDR", "127.0.0.1:7480"),
		GRPCListenAddr:         envAddr("TRAFFICSTATS_GRPC_ADDR", "127.0.0.1:7481"),
		ProbeListenAddr:        envAddr("TRAFFICSTATS_PROBE_ADDR", "127.0.0.1:7482"),
		SnapshotInterval:       envDuration("TRAFFICSTATS_SNAPSHOT_INTERVAL", 10*time.Second),
		HealthInterval:         envDuration("TRAFFICSTATS_HEALTH_INTERVAL", 10*time.Second),
		ShutdownTimeout:        envDuration("TRAFFICSTATS_SHUTDOWN_TIMEOUT", 20*time.Second),
		StreamMode:             StreamMode(strings.ToLower(env("TRAFFICSTATS_STREAM_MODE", string(StreamModeNone)))),
		BackendGRPCAddr:        env("TRAFFICSTATS_BACKEND_GRPC_ADDR", "127.0.0.1:3001"),
		BackendWSURL:           env("TRAFFICSTATS_BACKEND_WS_URL", "ws://127.0.0.1:3001/ws/traffic"),
		BackendToken:           env("TRAFFICSTATS_BACKEND_TOKEN", ""),
		GRPCSnapshotMethod:     env("TRAFFICSTATS_GRPC_SNAPSHOT_METHOD", "/trafficstats.v1.SnapshotService/StreamSnapshots"),
		AgentVersion:           HardcodedVersion,
		TLSEnabled:             envBool("TRAFFICSTATS_TLS_ENABLED", false),
		TLSSkipVerify:          envBool("TRAFFICSTATS_TLS_SKIP_VERIFY", false),
		TLSCAPath:              env("TRAFFICSTATS_TLS_CA_PATH", ""),
		TLSCertPath:            env("TRAFFICSTATS_TLS_CERT_PATH", ""),
		TLSKeyPath:             env("TRAFFICSTATS_TLS_KEY_PATH", ""),
		LogJSON:                envBool("TRAFFICSTATS_LOG_JSON", false),
		LogLevel:               strings.ToLower(env("TRAFFICSTATS_LOG_LEVEL", "info")),
		WebSocketWriteTimeout:  envDuration("TRAFFICSTATS_WS_WRITE_TIMEOUT", 5*time.Second),
		WebSocketPingInterval:  envDuration("TRAFFICSTATS_WS_PING_INTERVAL", 10*time.Second),
		CollectorErrorBackoff:  envDuration("TRAFFICSTATS_COLLECTOR_ERROR_BACKOFF", 1500*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("TRAFFICSTATS_NODE_ID is required")
	}
	if strings.TrimSpace(c.AgentVersion) == "" {
		return errors.New("agent version must not be empty")
	}
	if strings.TrimSpace(c.FSRoot) == "" {
		return errors.New("TRAFFICSTATS_FS_ROOT is required")
	}
	if c.ForcePlatformSupport && c.DisablePlatformSupport {
		return errors.New("TRAFFICSTATS_FORCE_PLATFORM_SUPPORT and TRAFFICSTATS_DISABLE_PLATFORM_SUPPORT are exclusive")
	}
	if strings.TrimSpace(c.HTTPListenAddr) == "" && strings.TrimSpace(c.GRPCListenAddr) == "" {
		return errors.New("at least one of TRAFFICSTATS_HTTP_ADDR or TRAFFICSTATS_GRPC_ADDR is required")
	}
	if c.HealthInterval <= 0 {
		return errors.New("TRAFFICSTATS_HEALTH_INTERVAL must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("TRAFFICSTATS_SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.StreamMode {
	case StreamModeNone:
		return nil
	case StreamModeGRPC, StreamModeWebSocket:
	default:
		return fmt.Errorf("unsupported stream mode %q", c.StreamMode)
	}
	if c.SnapshotInterval <= 0 {
		return errors.New("TRAFFICSTATS_SNAPSHOT_INTERVAL must be > 0")
	}
	if c.StreamMode == StreamModeGRPC {
		if c.BackendGRPCAddr == "" {
			return errors.New("TRAFFICSTATS_BACKEND_GRPC_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCSnapshotMethod) == "" {
			return errors.New("TRAFFICSTATS_GRPC_SNAPSHOT_METHOD is required for grpc mode")
		}
	}
	if c.StreamMode == StreamModeWebSocket && c.BackendWSURL == "" {
		return errors.New("TRAFFICSTATS_BACKEND_WS_URL is required for websocket mode")
	}
	return nil
}

// Streaming reports whether snapshots are pushed to a backend.
func (c Config) Streaming() bool {
	return c.StreamMode == StreamModeGRPC || c.StreamMode == StreamModeWebSocket
}

// StatsOptions maps the config onto the counter reader.
func (c Config) StatsOptions() []trafficstats.Option {
	opts := []trafficstats.Option{
		trafficstats.WithRoot(c.FSRoot),
		trafficstats.WithFallbackMode(c.MobileFallback),
	}
	switch {
	case c.ForcePlatformSupport:
		opts = append(opts, trafficstats.WithPlatformSupport(true))
	case c.DisablePlatformSupport:
		opts = append(opts, trafficstats.WithPlatformSupport(false))
	}
	return opts
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

func parseUIDList(raw string) ([]int32, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []int32
	seen := make(map[int32]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse uid %q: %w", part, err)
		}
		if seen[int32(v)] {
			continue
		}
		seen[int32(v)] = true
		out = append(out, int32(v))
	}
	return out, nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// envAddr treats a variable that is set but empty as "listener disabled".
func envAddr(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(v)
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

package stream

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"trafficstats-agent/internal/config"
)

const defaultSnapshotMethod = "/trafficstats.v1.SnapshotService/StreamSnapshots"

func NewSinkFromConfig(cfg config.Config, tlsCfg *tls.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.StreamMode {
	case config.StreamModeGRPC:
		method := cfg.GRPCSnapshotMethod
		if method == "" {
			method = defaultSnapshotMethod
		}
		return NewGRPCClient(cfg.BackendGRPCAddr, tlsCfg, cfg.BackendToken, method, logger), nil
	case config.StreamModeWebSocket:
		return NewWebSocketClient(cfg.BackendWSURL, cfg.BackendToken, tlsCfg, cfg.WebSocketWriteTimeout, cfg.WebSocketPingInterval, logger), nil
	default:
		return nil, fmt.Errorf("no sink for stream mode %q", cfg.StreamMode)
	}
}

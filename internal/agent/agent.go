package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trafficstats-agent/internal/agent/version"
	"trafficstats-agent/internal/bridge"
	"trafficstats-agent/internal/collector"
	"trafficstats-agent/internal/config"
	"trafficstats-agent/internal/model"
	"trafficstats-agent/internal/stream"
	"trafficstats-agent/internal/trafficstats"
)

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	bootID    string
	stats     *trafficstats.Stats
	table     *trafficstats.Table
	snapshots *collector.SnapshotCollector
	scheduler *collector.Scheduler
	sink      stream.Sink
	grpc      *bridge.GRPCServer
	registry  *prometheus.Registry
	health    *HealthStatus
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	stats := trafficstats.New(append(cfg.StatsOptions(), trafficstats.WithLogger(logger))...)
	table := trafficstats.NewTable(stats)
	bootID := uuid.NewString()
	snapshots := collector.NewSnapshotCollector(table, cfg.NodeID, bootID, cfg.WatchUIDs)
	health := NewHealthStatus()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		bridge.NewMetricsCollector(table, cfg.WatchUIDs),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &Agent{
		cfg:       cfg,
		logger:    logger,
		bootID:    bootID,
		stats:     stats,
		table:     table,
		snapshots: snapshots,
		registry:  registry,
		health:    health,
	}
	if cfg.GRPCListenAddr != "" {
		a.grpc = bridge.NewGRPCServer(table, logger)
	}

	if cfg.Streaming() {
		tlsCfg, err := cfg.TLSConfig()
		if err != nil {
			return nil, fmt.Errorf("tls config: %w", err)
		}
		sink, err := stream.NewSinkFromConfig(cfg, tlsCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("stream sink: %w", err)
		}
		a.sink = &healthSink{sink: sink, health: health}
		a.scheduler = collector.NewScheduler(logger, snapshots, a.sink, cfg.SnapshotInterval, cfg.CollectorErrorBackoff)
	}
	return a, nil
}

// Table is the dispatch table handed to the bridges.
func (a *Agent) Table() *trafficstats.Table {
	return a.table
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting trafficstats-agent",
		"node_id", a.cfg.NodeID,
		"boot_id", a.bootID,
		"net_dir", a.stats.NetClassDir(),
		"platform_supported", a.stats.Supported(),
		"stream_mode", a.cfg.StreamMode,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := a.shutdown(shutdownCtx); err != nil {
		a.logger.Warn("shutdown finished with errors", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("trafficstats-agent stopped")
	return nil
}

func (a *Agent) snapshot(ctx context.Context) (model.TrafficSnapshot, error) {
	return a.snapshots.Collect(ctx)
}

func (a *Agent) versionInfo() any {
	return version.Get(a.cfg, a.bootID, a.stats.Supported())
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

type healthSink struct {
	sink   stream.Sink
	health *HealthStatus
}

func (s *healthSink) SendSnapshot(ctx context.Context, snap model.TrafficSnapshot) error {
	err := s.sink.SendSnapshot(ctx, snap)
	if err != nil {
		s.health.SetStreamConnected(false)
		return err
	}
	s.health.SetStreamConnected(true)
	if snap.TimestampUnix > 0 {
		s.health.MarkSnapshot(time.Unix(snap.TimestampUnix, 0).UTC())
	}
	return nil
}

func (s *healthSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}

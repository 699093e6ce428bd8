package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"trafficstats-agent/internal/bridge"
)

func (a *Agent) run(ctx context.Context) error {
	a.checkSource()

	g, gctx := errgroup.WithContext(ctx)
	if a.scheduler != nil {
		g.Go(func() error {
			return a.scheduler.Run(gctx)
		})
	}
	if a.cfg.HTTPListenAddr != "" {
		g.Go(func() error {
			return a.runHTTP(gctx)
		})
	}
	if a.grpc != nil {
		g.Go(func() error {
			return a.runGRPC(gctx)
		})
	}
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	if a.cfg.ProbeListenAddr != "" {
		g.Go(func() error {
			return a.runProbeListener(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHTTP(ctx context.Context) error {
	handler := bridge.NewHTTPHandler(bridge.HTTPDeps{
		Table:    a.table,
		Snapshot: a.snapshot,
		Health:   a.health.Snapshot,
		Version:  a.versionInfo,
		Metrics:  promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Logger:   a.logger,
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTPListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", a.cfg.HTTPListenAddr)
	if err != nil {
		return fmt.Errorf("listen http bridge %s: %w", a.cfg.HTTPListenAddr, err)
	}
	a.logger.Info("http bridge listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http bridge: %w", err)
	}
	return nil
}

func (a *Agent) runGRPC(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen grpc bridge %s: %w", a.cfg.GRPCListenAddr, err)
	}
	return a.grpc.Serve(ctx, ln)
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.checkSource()
			_ = a.logHealth()
		}
	}
}

// checkSource records whether the interface directory can be listed. On an
// unsupported platform it never can.
func (a *Agent) checkSource() {
	if !a.stats.Supported() {
		a.health.SetSourceReadable(false)
		return
	}
	_, err := os.ReadDir(a.stats.NetClassDir())
	if err != nil {
		if a.health.sourceReadable.Load() {
			a.logger.Warn("interface directory became unreadable", "path", a.stats.NetClassDir(), "error", err)
		}
		a.health.SetSourceReadable(false)
		return
	}
	a.health.SetSourceReadable(true)
}

func (a *Agent) logHealth() error {
	a.logger.Log(context.Background(), slog.LevelDebug, "agent health", "snapshot", a.health.Snapshot())
	return nil
}

func (a *Agent) shutdown(ctx context.Context) error {
	var err error
	if a.sink != nil {
		if closeErr := a.sink.Close(ctx); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close stream sink: %w", closeErr))
		}
		a.health.SetStreamConnected(false)
	}
	if a.grpc != nil {
		a.grpc.Stop()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = multierr.Append(err, fmt.Errorf("shutdown: %w", ctxErr))
	}
	return err
}

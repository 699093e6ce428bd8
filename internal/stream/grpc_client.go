package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"

	"trafficstats-agent/internal/model"
)

type GRPCClient struct {
	mu sync.Mutex

	logger         *slog.Logger
	addr           string
	tlsConfig      *tls.Config
	token          string
	snapshotMethod string
	conn           *grpc.ClientConn
	snapshotStream grpc.ClientStream
	streamCancel   context.CancelFunc
	dialTimeout    time.Duration
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, token, snapshotMethod string, logger *slog.Logger) *GRPCClient {
	encoding.RegisterCodec(JSONCodec{})
	return &GRPCClient{
		logger:         logger,
		addr:           addr,
		tlsConfig:      tlsCfg,
		token:          token,
		snapshotMethod: snapshotMethod,
		dialTimeout:    8 * time.Second,
	}
}

func (c *GRPCClient) SendSnapshot(ctx context.Context, s model.TrafficSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnLocked(ctx); err != nil {
		return err
	}
	if c.snapshotStream == nil {
		if err := c.openSnapshotStreamLocked(); err != nil {
			return err
		}
	}
	frame := NewSnapshotFrame(s)
	if err := c.snapshotStream.SendMsg(frame); err != nil {
		c.logger.Warn("grpc snapshot send failed, reopening stream", "error", err)
		c.closeStreamLocked()
		if err2 := c.openSnapshotStreamLocked(); err2 != nil {
			return fmt.Errorf("reopen snapshot stream: %w", err2)
		}
		if err2 := c.snapshotStream.SendMsg(frame); err2 != nil {
			return fmt.Errorf("send snapshot frame: %w", err2)
		}
	}
	return nil
}

func (c *GRPCClient) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeStreamLocked()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *GRPCClient) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	var creds credentials.TransportCredentials
	if c.tlsConfig != nil {
		creds = credentials.NewTLS(c.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.DialContext(
		dialCtx,
		c.addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(JSONCodec{})),
	)
	if err != nil {
		return fmt.Errorf("grpc dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.logger.Info("grpc stream connected", "addr", c.addr)
	return nil
}

// The stream outlives any single send, so it gets its own context
// rather than the caller's.
func (c *GRPCClient) openSnapshotStreamLocked() error {
	if c.conn == nil {
		return fmt.Errorf("grpc conn is nil")
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	if c.token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "authorization", "Bearer "+c.token)
	}
	s, err := c.conn.NewStream(streamCtx, &grpc.StreamDesc{ClientStreams: true}, c.snapshotMethod)
	if err != nil {
		cancel()
		return fmt.Errorf("open snapshot stream: %w", err)
	}
	c.snapshotStream = s
	c.streamCancel = cancel
	return nil
}

func (c *GRPCClient) closeStreamLocked() {
	if c.snapshotStream != nil {
		_ = c.snapshotStream.CloseSend()
		c.snapshotStream = nil
	}
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
}

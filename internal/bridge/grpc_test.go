package bridge

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"trafficstats-agent/internal/trafficstats"
)

func newBridgeClient(t *testing.T) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(newScenarioTable(t), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestGRPCInvoke(t *testing.T) {
	c := newBridgeClient(t)
	ctx := context.Background()

	v, err := c.Invoke(ctx, trafficstats.MethodTotalTxBytes, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(160), v)

	v, err = c.Invoke(ctx, trafficstats.MethodMobileTxBytes, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(150), v)

	uid := int32(10001)
	v, err = c.Invoke(ctx, trafficstats.MethodUIDRxBytes, &uid)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), v)

	missing := int32(5)
	v, err = c.Invoke(ctx, trafficstats.MethodUIDTxBytes, &missing)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}

func TestGRPCInvokeErrors(t *testing.T) {
	c := newBridgeClient(t)
	ctx := context.Background()

	_, err := c.Invoke(ctx, "getNothing", nil)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.Invoke(ctx, trafficstats.MethodUIDRxBytes, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCListMethods(t *testing.T) {
	methods, err := newBridgeClient(t).ListMethods(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 10)
	assert.Equal(t, trafficstats.MethodMobileTxPackets, methods[0].Name)
	assert.True(t, methods[8].TakesUID)
}

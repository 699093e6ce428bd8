package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"trafficstats-agent/internal/stream"
	"trafficstats-agent/internal/trafficstats"
)

const (
	ServiceName       = "trafficstats.v1.TrafficStats"
	InvokeMethod      = "/" + ServiceName + "/Invoke"
	ListMethodsMethod = "/" + ServiceName + "/ListMethods"
)

type InvokeRequest struct {
	Method string `json:"method"`
	UID    *int32 `json:"uid,omitempty"`
}

type InvokeResponse struct {
	Method string `json:"method"`
	Value  int64  `json:"value"`
}

type ListMethodsRequest struct{}

type ListMethodsResponse struct {
	Methods []trafficstats.MethodDesc `json:"methods"`
}

type TrafficStatsServer interface {
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error)
	ListMethods(ctx context.Context, req *ListMethodsRequest) (*ListMethodsResponse, error)
}

// serviceDesc is written by hand; messages travel as JSON.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrafficStatsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
		{MethodName: "ListMethods", Handler: listMethodsHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InvokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrafficStatsServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrafficStatsServer).Invoke(ctx, req.(*InvokeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listMethodsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListMethodsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrafficStatsServer).ListMethods(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListMethodsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrafficStatsServer).ListMethods(ctx, req.(*ListMethodsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer exposes a Table over gRPC.
type GRPCServer struct {
	table  *trafficstats.Table
	logger *slog.Logger
	srv    *grpc.Server
}

func NewGRPCServer(table *trafficstats.Table, logger *slog.Logger, opts ...grpc.ServerOption) *GRPCServer {
	s := &GRPCServer{table: table, logger: logger}
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(stream.JSONCodec{}),
		grpc.ChainUnaryInterceptor(s.logCalls),
	}, opts...)
	s.srv = grpc.NewServer(opts...)
	s.srv.RegisterService(&serviceDesc, s)
	return s
}

func (s *GRPCServer) Invoke(_ context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	var args []int32
	if req.UID != nil {
		args = append(args, *req.UID)
	}
	v, err := s.table.Invoke(req.Method, args...)
	switch {
	case errors.Is(err, trafficstats.ErrUnknownMethod):
		return nil, status.Error(codes.NotFound, err.Error())
	case errors.Is(err, trafficstats.ErrArity):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &InvokeResponse{Method: req.Method, Value: v}, nil
}

func (s *GRPCServer) ListMethods(context.Context, *ListMethodsRequest) (*ListMethodsResponse, error) {
	return &ListMethodsResponse{Methods: s.table.Methods()}, nil
}

// Serve blocks until ctx is done or the listener fails.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.srv.GracefulStop()
	}()
	s.logger.Info("grpc bridge listening", "addr", lis.Addr().String())
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc bridge: %w", err)
	}
	return nil
}

func (s *GRPCServer) Stop() {
	s.srv.Stop()
}

func (s *GRPCServer) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Debug("grpc bridge call failed", "method", info.FullMethod, "error", err)
	}
	return resp, err
}

// Client calls a remote TrafficStats bridge.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Invoke(ctx context.Context, method string, uid *int32) (int64, error) {
	out := new(InvokeResponse)
	err := c.conn.Invoke(ctx, InvokeMethod, &InvokeRequest{Method: method, UID: uid}, out, grpc.ForceCodec(stream.JSONCodec{}))
	if err != nil {
		return -1, err
	}
	return out.Value, nil
}

func (c *Client) ListMethods(ctx context.Context) ([]trafficstats.MethodDesc, error) {
	out := new(ListMethodsResponse)
	err := c.conn.Invoke(ctx, ListMethodsMethod, &ListMethodsRequest{}, out, grpc.ForceCodec(stream.JSONCodec{}))
	if err != nil {
		return nil, err
	}
	return out.Methods, nil
}

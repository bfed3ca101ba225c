package grpcx

import (
	"context"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer wraps the standard gRPC health service so callers can flip serving status
// as dependencies come and go.
type HealthServer struct {
	*health.Server
	service string
}

func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.SetServingStatus("", status)
	h.SetServingStatus(h.service, status)
}

// Serve starts a gRPC server exposing the health service on addr and stops it gracefully
// when ctx ends.
func Serve(ctx context.Context, logger *slog.Logger, addr, service string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor()),
	)
	hs := &HealthServer{Server: health.NewServer(), service: service}
	healthpb.RegisterHealthServer(srv, hs.Server)
	hs.SetServing(true)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()
	return hs, nil
}

// CheckHealth dials addr and asks for the named service's status.
func CheckHealth(ctx context.Context, addr, service string) (bool, error) {
	conn, err := Dial(ctx, addr, DialOptions{})
	if err != nil {
		return false, err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

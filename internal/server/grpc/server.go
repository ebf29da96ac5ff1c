// Package grpcserver runs the operational gRPC listener: the standard health
// service and, in development, server reflection.
package grpcserver

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name reported alongside the overall status.
const ServiceName = "noodle.Modules"

// Server is the ops gRPC server.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// New builds the server with recovery and logging interceptors. Every service
// starts NOT_SERVING until SetServing is called.
func New(log *zap.Logger, withReflection bool, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
	}, opts...)
	gs := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	if withReflection {
		reflection.Register(gs)
	}
	return &Server{gs: gs, health: hs, log: log}
}

// SetServing flips the reported health of the whole server.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	return s.gs.Serve(lis)
}

// Shutdown reports NOT_SERVING, then stops gracefully. When ctx ends first the
// remaining connections are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.gs.Stop()
		<-done
	}
}

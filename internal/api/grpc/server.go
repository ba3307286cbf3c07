// Package grpcapi serves the gRPC infrastructure port: the standard health
// service, tracking application readiness, plus reflection for grpcurl.
package grpcapi

import (
	"context"
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"playground-transcript-feed/internal/observability"
	"playground-transcript-feed/internal/observability/metrics"
)

// FeedService is the health service name reported for the feed API.
const FeedService = "playground.transcript.Feed"

// Server wraps a grpc.Server with a health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	addr   string
}

// NewServer creates a gRPC server with logging/metrics interceptors,
// health checks and reflection.
func NewServer(addr string, m *metrics.Metrics) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(FeedService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	return &Server{grpc: g, health: healthServer, addr: addr}
}

// SetServing flips the health status of the server and the feed service.
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(FeedService, st)
}

// Serve listens on the configured address and blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC server")
	return s.grpc.Serve(lis)
}

// Shutdown marks the server not serving and stops it gracefully, forcing a
// stop when ctx ends first.
func (s *Server) Shutdown(ctx context.Context) {
	s.SetServing(false)
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("gRPC graceful stop timed out, forcing stop")
		s.grpc.Stop()
		<-done
	}
}

package grpc

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// ServiceName is the health-check service key for the chat server.
const ServiceName = "volunnet.chat"

// Server exposes the standard gRPC health protocol so orchestrators can
// check the chat instance.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

func NewServer(addr string, logger zerolog.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return &Server{grpc: s, health: hs, lis: lis}, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

func (s *Server) Start() {
	go func() {
		l := log.L()
		l.Info().Str("address", s.lis.Addr().String()).Msg("chat grpc server listening")
		if err := s.grpc.Serve(s.lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()
}

// SetServing flips the reported health of the chat service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

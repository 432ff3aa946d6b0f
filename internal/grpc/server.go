// Package grpc exposes the standard gRPC health service for the chat server.
package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// ServiceName is the health check service name reported for the chat core.
const ServiceName = "chat.Realtime"

// HealthServer serves grpc.health.v1 and tracks the hub lifecycle.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	lis    net.Listener
}

// NewHealthServer listens on addr. Serving starts with Start.
func NewHealthServer(addr string, logger zerolog.Logger) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{server: s, health: hs, lis: lis}, nil
}

// Addr returns the listening address.
func (h *HealthServer) Addr() string {
	return h.lis.Addr().String()
}

// Start serves in the background. The chat service is reported as not
// serving once done is closed.
func (h *HealthServer) Start(done <-chan struct{}) {
	go func() {
		l := log.L()
		l.Info().Str("address", h.Addr()).Msg("grpc health server listening")
		if err := h.server.Serve(h.lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()

	go func() {
		<-done
		h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	}()
}

// Stop marks every service as not serving and drains in-flight calls until
// ctx expires.
func (h *HealthServer) Stop(ctx context.Context) {
	h.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		h.server.Stop()
	}
}

package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/logger"
)

// CAServiceName is the health service name that follows the CA state.
const CAServiceName = "certgate.ca"

// CAStatusReader derives the current CA state.
type CAStatusReader interface {
	Status(ctx context.Context) (*models.CAState, error)
}

// HealthServer serves grpc.health.v1. The process itself is always SERVING;
// certgate.ca is SERVING only while the CA is active.
// HealthServer 提供 gRPC 健康检查服务。
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	ca     CAStatusReader
	log    logger.Logger
}

// NewHealthServer creates the gRPC server and registers the health service on it.
func NewHealthServer(ca CAStatusReader, chain *InterceptorChain, log logger.Logger) *HealthServer {
	hs := health.NewServer()
	server := grpc.NewServer(chain.ChainUnaryInterceptors())
	healthpb.RegisterHealthServer(server, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(CAServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		server: server,
		health: hs,
		ca:     ca,
		log:    log.WithComponent("grpc"),
	}
}

// Refresh re-reads the CA state and updates certgate.ca.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	state, err := s.ca.Status(ctx)
	switch {
	case err != nil:
		s.log.Warn(ctx, "CA status check failed", logger.Error(err))
	case state.Active():
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(CAServiceName, st)
	return st
}

// Watch refreshes the CA status every interval until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Serve accepts connections on lis until Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "Starting gRPC health server", logger.String("address", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the cart API.
const ServiceName = "postergenius.cart"

// Check pings one dependency. A non-nil error marks the service NOT_SERVING.
type Check func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 for orchestrators. The reported status
// follows the dependency checks passed to Watch.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{server: srv, health: hs}
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Watch runs checks every interval until ctx is done and publishes the
// combined result for ServiceName and the overall server.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration, checks map[string]Check) {
	s.probe(ctx, checks)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx, checks)
		}
	}
}

func (s *HealthServer) probe(ctx context.Context, checks map[string]Check) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "dependency unhealthy", "dependency", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

// GracefulStop marks everything NOT_SERVING and drains open streams.
func (s *HealthServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GRPCHealthServer exposes the readiness checks over grpc.health.v1.
// The overall service ("") is SERVING only when every check passes; each
// named check is also published as its own service.
type GRPCHealthServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	checks   map[string]HealthCheckFunc
	interval time.Duration
}

// NewGRPCHealthServer listens on addr and registers the health service
func NewGRPCHealthServer(addr string, checks map[string]HealthCheckFunc) (*GRPCHealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		Time:    30 * time.Second,
		Timeout: 5 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &GRPCHealthServer{
		server:   server,
		health:   hs,
		listener: lis,
		checks:   checks,
		interval: 15 * time.Second,
	}, nil
}

// Addr returns the address the server listens on
func (g *GRPCHealthServer) Addr() string {
	return g.listener.Addr().String()
}

// Refresh re-evaluates every check and publishes the statuses
func (g *GRPCHealthServer) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dependencies, allHealthy := RunChecks(ctx, g.checks)
	for name, dep := range dependencies {
		g.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	g.health.SetServingStatus("", servingStatus(allHealthy))
}

// Serve refreshes the statuses periodically and serves until ctx is done
// or the listener fails.
func (g *GRPCHealthServer) Serve(ctx context.Context) error {
	logger := WithComponent("grpc_health")
	g.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Refresh(ctx)
			}
		}
	}()

	logger.Info().Str("addr", g.Addr()).Msg("gRPC health server listening")
	if err := g.server.Serve(g.listener); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// Shutdown marks every service NOT_SERVING and stops the server
func (g *GRPCHealthServer) Shutdown() {
	g.health.Shutdown()
	g.server.GracefulStop()
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

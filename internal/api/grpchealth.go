package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for threadrelay.
const ServiceName = "threadrelay"

// GRPCHealth serves the standard gRPC health protocol, mirroring the
// session store's reachability.
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	store    Pinger
	interval time.Duration
	logger   *slog.Logger
}

// NewGRPCHealth creates a gRPC health server.
func NewGRPCHealth(store Pinger, interval time.Duration, logger *slog.Logger) *GRPCHealth {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCHealth{
		server:   srv,
		health:   hs,
		store:    store,
		interval: interval,
		logger:   logger.With("component", "grpc_health"),
	}
}

// Refresh pings the store once and publishes the resulting status.
func (g *GRPCHealth) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := g.store.Ping(pingCtx); err != nil {
		g.logger.Warn("Session store unreachable", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve listens on addr and refreshes health until ctx is done.
func (g *GRPCHealth) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	g.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Refresh(ctx)
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			}
		}
	}()

	g.logger.Info("gRPC health listening", "addr", lis.Addr().String())
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

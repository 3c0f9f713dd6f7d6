package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Moadams/ProjectTracker/internal/obs"
)

// GRPCHealth publishes readiness over the standard gRPC health protocol,
// both for the server as a whole ("") and for serviceName.
type GRPCHealth struct {
	srv       *health.Server
	readiness ReadinessChecker
}

// NewGRPCHealth creates the health service. A nil checker is always ready.
func NewGRPCHealth(r ReadinessChecker) *GRPCHealth {
	if r == nil {
		r = PingFunc(nil)
	}
	return &GRPCHealth{srv: health.NewServer(), readiness: r}
}

// Register attaches the health service to s.
func (h *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh runs the readiness check once and publishes the result.
func (h *GRPCHealth) Refresh(ctx context.Context) bool {
	status := healthpb.HealthCheckResponse_SERVING
	ok := true
	if err := h.readiness.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		ok = false
		obs.Logger().Warn("readiness check failed", zap.Error(err))
	}
	obs.SetReady(ok)
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
	return ok
}

// Run refreshes every interval until ctx is done, then marks the server as
// shutting down so clients drain.
func (h *GRPCHealth) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Health wraps the standard gRPC health service.
type Health struct {
	srv    *health.Server
	logger *slog.Logger
}

// NewGRPCServer builds a gRPC server exposing health and reflection.
// The health status starts as SERVING.
func NewGRPCServer(logger *slog.Logger) (*grpc.Server, *Health) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	h := &Health{srv: hs, logger: logger}
	h.SetServing(true)
	return gs, h
}

// SetServing flips the overall health status.
func (h *Health) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", st)
	h.logger.Info("health status", "status", st.String())
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

package server

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthStatus(t *testing.T) {
	gs, h := NewGRPCServer(nil)
	defer gs.Stop()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := h.srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatal(err)
		}
		return resp.GetStatus()
	}
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("initial = %v", got)
	}
	h.SetServing(false)
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after SetServing(false) = %v", got)
	}
	h.SetServing(true)
	h.Shutdown()
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after Shutdown = %v", got)
	}
}

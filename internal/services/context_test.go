package services_test

import (
	"context"
	"testing"

	"curator/internal/services"
)

func TestContextAnnotations(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id on empty context")
	}

	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithComponent(ctx, "worker")
	ctx = services.WithRequestID(ctx, "req-9")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("job id = %q, ok = %v", id, ok)
	}
	if component, ok := services.ComponentFromContext(ctx); !ok || component != "worker" {
		t.Fatalf("component = %q, ok = %v", component, ok)
	}
	if req, ok := services.RequestIDFromContext(ctx); !ok || req != "req-9" {
		t.Fatalf("request id = %q, ok = %v", req, ok)
	}
}

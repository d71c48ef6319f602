package services_test

import (
	"context"
	"testing"

	"strinks/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithFingerprint(ctx, "gose|example brewery")
	ctx = services.WithBackend(ctx, "untappd-api")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if fp, ok := services.FingerprintFromContext(ctx); !ok || fp != "gose|example brewery" {
		t.Fatalf("unexpected fingerprint: %v %v", fp, ok)
	}
	if backend, ok := services.BackendFromContext(ctx); !ok || backend != "untappd-api" {
		t.Fatalf("unexpected backend: %v %v", backend, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "")
	ctx = services.WithBackend(ctx, "")
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
	if _, ok := services.BackendFromContext(ctx); ok {
		t.Fatal("expected no backend value")
	}
}

package services_test

import (
	"context"
	"testing"

	"hlscache/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithRendition(ctx, "a/b/video_720")

	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if key, ok := services.RenditionFromContext(ctx); !ok || key != "a/b/video_720" {
		t.Fatalf("unexpected rendition: %v %v", key, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "")
	ctx = services.WithRendition(ctx, "")
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id")
	}
	if _, ok := services.RenditionFromContext(ctx); ok {
		t.Fatal("expected no rendition")
	}
}

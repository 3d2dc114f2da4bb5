package services_test

import (
	"context"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithEvidenceRef(ctx, "image[0]")
	ctx = services.WithStage(ctx, "census")
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithQueryContext(ctx, "session-a")

	if ref, ok := services.EvidenceRefFromContext(ctx); !ok || ref != "image[0]" {
		t.Fatalf("unexpected evidence ref: %v %v", ref, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "census" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if key, ok := services.QueryContextFromContext(ctx); !ok || key != "session-a" {
		t.Fatalf("unexpected query context: %v %v", key, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}

package services_test

import (
	"context"
	"testing"

	"framecast/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProjectID(ctx, "proj-42")
	ctx = services.WithStage(ctx, "scene")
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithOperationID(ctx, "op-7")

	if id, ok := services.ProjectIDFromContext(ctx); !ok || id != "proj-42" {
		t.Fatalf("unexpected project id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "scene" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if oid, ok := services.OperationIDFromContext(ctx); !ok || oid != "op-7" {
		t.Fatalf("unexpected operation id: %v %v", oid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}

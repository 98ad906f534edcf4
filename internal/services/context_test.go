package services_test

import (
	"testing"

	"vidpipe/internal/services"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := t.Context()

	if _, ok := services.JobRowFromContext(ctx); ok {
		t.Fatal("empty context should not carry a job row")
	}

	ctx = services.WithJobRow(ctx, 12)
	ctx = services.WithStage(ctx, "render")
	ctx = services.WithCycleID(ctx, "cycle-1")

	if row, ok := services.JobRowFromContext(ctx); !ok || row != 12 {
		t.Fatalf("job row = %d, %v", row, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "render" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if id, ok := services.CycleIDFromContext(ctx); !ok || id != "cycle-1" {
		t.Fatalf("cycle id = %q, %v", id, ok)
	}
}

func TestContextIgnoresEmptyValues(t *testing.T) {
	ctx := services.WithStage(t.Context(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("blank stage should not be stored")
	}
	ctx = services.WithCycleID(ctx, "")
	if _, ok := services.CycleIDFromContext(ctx); ok {
		t.Fatal("blank cycle id should not be stored")
	}
}

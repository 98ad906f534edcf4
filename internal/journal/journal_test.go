package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"vidpipe/internal/journal"
)

func mustOpen(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCycleRoundTrip(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	rowID, err := store.BeginCycle(ctx, "cycle-1")
	if err != nil {
		t.Fatalf("BeginCycle failed: %v", err)
	}
	if rowID == 0 {
		t.Fatal("expected row id to be assigned")
	}

	started := time.Now().UTC()
	if err := store.RecordAttempt(ctx, rowID, "rendering", 1, started, 1500*time.Millisecond, "retry", "encoder exited 1"); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	if err := store.RecordAttempt(ctx, rowID, "rendering", 2, started.Add(2*time.Second), 90*time.Second, "ok", ""); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}

	if err := store.FinishCycle(ctx, rowID, "completed", 3, "https://youtu.be/abc", ""); err != nil {
		t.Fatalf("FinishCycle failed: %v", err)
	}

	last, err := store.LastCycle(ctx)
	if err != nil {
		t.Fatalf("LastCycle failed: %v", err)
	}
	if last == nil {
		t.Fatal("expected a cycle")
	}
	if last.CycleID != "cycle-1" || last.Outcome != "completed" || last.JobRow != 3 {
		t.Fatalf("unexpected cycle: %#v", last)
	}
	if last.ResultURL != "https://youtu.be/abc" {
		t.Fatalf("unexpected result url: %q", last.ResultURL)
	}
	if last.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}

	attempts, err := store.AttemptsForCycle(ctx, rowID)
	if err != nil {
		t.Fatalf("AttemptsForCycle failed: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].Attempt != 1 || attempts[0].Outcome != "retry" || attempts[0].ErrorMessage != "encoder exited 1" {
		t.Fatalf("unexpected first attempt: %#v", attempts[0])
	}
	if attempts[1].Attempt != 2 || attempts[1].Outcome != "ok" || attempts[1].Duration != 90*time.Second {
		t.Fatalf("unexpected second attempt: %#v", attempts[1])
	}
}

func TestRecentCyclesNewestFirst(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		rowID, err := store.BeginCycle(ctx, id)
		if err != nil {
			t.Fatalf("BeginCycle failed: %v", err)
		}
		if err := store.FinishCycle(ctx, rowID, "nothing_to_do", 0, "", ""); err != nil {
			t.Fatalf("FinishCycle failed: %v", err)
		}
	}

	cycles, err := store.RecentCycles(ctx, 2)
	if err != nil {
		t.Fatalf("RecentCycles failed: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(cycles))
	}
	if cycles[0].CycleID != "c" || cycles[1].CycleID != "b" {
		t.Fatalf("unexpected ordering: %q, %q", cycles[0].CycleID, cycles[1].CycleID)
	}
}

func TestLastCycleEmptyJournal(t *testing.T) {
	store := mustOpen(t)

	last, err := store.LastCycle(context.Background())
	if err != nil {
		t.Fatalf("LastCycle failed: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil cycle, got %#v", last)
	}
}

func TestFinishCycleUnknownRow(t *testing.T) {
	store := mustOpen(t)

	if err := store.FinishCycle(context.Background(), 42, "failed", 0, "", "boom"); err == nil {
		t.Fatal("expected error for unknown cycle row")
	}
}

func TestOutcomeCountsSkipsUnfinished(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	done, err := store.BeginCycle(ctx, "done")
	if err != nil {
		t.Fatalf("BeginCycle failed: %v", err)
	}
	if err := store.FinishCycle(ctx, done, "completed", 2, "https://youtu.be/x", ""); err != nil {
		t.Fatalf("FinishCycle failed: %v", err)
	}
	if _, err := store.BeginCycle(ctx, "in-flight"); err != nil {
		t.Fatalf("BeginCycle failed: %v", err)
	}

	counts, err := store.OutcomeCounts(ctx)
	if err != nil {
		t.Fatalf("OutcomeCounts failed: %v", err)
	}
	if counts["completed"] != 1 {
		t.Fatalf("expected one completed cycle, got %d", counts["completed"])
	}
	if len(counts) != 1 {
		t.Fatalf("expected only finished cycles to be counted: %#v", counts)
	}
}

func TestSchemaMismatchDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	bumpSchemaVersion(t, path)

	if _, err := journal.Open(path); !errors.Is(err, journal.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func bumpSchemaVersion(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("UPDATE schema_version SET version = version + 1"); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
}

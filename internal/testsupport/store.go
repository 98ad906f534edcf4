package testsupport

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"vidpipe/internal/config"
	"vidpipe/internal/journal"
	"vidpipe/internal/queue"
)

// MustOpenJournal opens the run journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// CellUpdate records one UpdateCell call against a fake store.
type CellUpdate struct {
	Row   int
	Field queue.Field
	Value string
}

// FakeStore is an in-memory queue.Store. Writes are applied to the held
// jobs so later reads observe them, and every call is recorded for
// assertions. Failures are scriptable per call.
type FakeStore struct {
	mu      sync.Mutex
	jobs    map[int]queue.Job
	order   []int
	updates []CellUpdate

	// ReadErr, when set, fails every ReadRows call.
	ReadErr error
	// UpdateErr, when set, is consulted before each write; a non-nil
	// return fails the call without applying it.
	UpdateErr func(row int, field queue.Field, value string) error
}

// NewFakeStore seeds a fake store with the given rows in sheet order.
func NewFakeStore(jobs ...queue.Job) *FakeStore {
	s := &FakeStore{jobs: make(map[int]queue.Job, len(jobs))}
	for _, job := range jobs {
		s.jobs[job.Row] = job
		s.order = append(s.order, job.Row)
	}
	return s
}

// ReadRows returns the current rows in their seeded order.
func (s *FakeStore) ReadRows(ctx context.Context) ([]queue.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	out := make([]queue.Job, 0, len(s.order))
	for _, row := range s.order {
		out = append(out, s.jobs[row])
	}
	return out, nil
}

// UpdateCell applies the write to the held job and records the call.
func (s *FakeStore) UpdateCell(ctx context.Context, row int, field queue.Field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		if err := s.UpdateErr(row, field, value); err != nil {
			return err
		}
	}
	job, ok := s.jobs[row]
	if !ok {
		return fmt.Errorf("fake store: no row %d", row)
	}
	switch field {
	case queue.FieldStatus:
		status, ok := queue.ParseStatus(value)
		if !ok {
			return fmt.Errorf("fake store: bad status %q", value)
		}
		job.Status = status
	case queue.FieldResultURL:
		job.ResultURL = value
	case queue.FieldError:
		job.ErrorMessage = value
	case queue.FieldCost:
		cost, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("fake store: bad cost %q", value)
		}
		job.CostEstimate = cost
	case queue.FieldStartedAt:
		job.ProcessingStartedAt = queue.ParseSheetTime(value)
	default:
		return fmt.Errorf("fake store: unknown field %q", field)
	}
	s.jobs[row] = job
	s.updates = append(s.updates, CellUpdate{Row: row, Field: field, Value: value})
	return nil
}

// Job returns the current state of a row.
func (s *FakeStore) Job(row int) (queue.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[row]
	return job, ok
}

// Updates returns every recorded write in call order.
func (s *FakeStore) Updates() []CellUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CellUpdate, len(s.updates))
	copy(out, s.updates)
	return out
}

// UpdatesFor filters the recorded writes to one row.
func (s *FakeStore) UpdatesFor(row int) []CellUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CellUpdate
	for _, u := range s.updates {
		if u.Row == row {
			out = append(out, u)
		}
	}
	return out
}

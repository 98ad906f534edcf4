package pipeline_test

import (
	"testing"
	"time"

	"vidpipe/internal/pipeline"
	"vidpipe/internal/queue"
)

func TestSelectNext(t *testing.T) {
	base := time.Date(2026, 3, 14, 18, 0, 0, 0, time.Local)
	earlier := base.Add(-3 * time.Hour)
	later := base.Add(2 * time.Hour)

	tests := []struct {
		name    string
		jobs    []queue.Job
		wantRow int
		wantOK  bool
	}{
		{
			name: "processing row blocks selection",
			jobs: []queue.Job{
				{Row: 2, Status: queue.StatusDone},
				{Row: 3, Status: queue.StatusProcessing},
				{Row: 4, Status: queue.StatusWaiting, ScheduledAt: &earlier},
			},
		},
		{
			name: "earliest scheduled wins over sheet order",
			jobs: []queue.Job{
				{Row: 2, Status: queue.StatusWaiting},
				{Row: 3, Status: queue.StatusWaiting, ScheduledAt: &later},
				{Row: 4, Status: queue.StatusWaiting, ScheduledAt: &earlier},
			},
			wantRow: 4,
			wantOK:  true,
		},
		{
			name: "scheduled beats unscheduled",
			jobs: []queue.Job{
				{Row: 2, Status: queue.StatusWaiting},
				{Row: 9, Status: queue.StatusWaiting, ScheduledAt: &later},
			},
			wantRow: 9,
			wantOK:  true,
		},
		{
			name: "unscheduled rows keep sheet order",
			jobs: []queue.Job{
				{Row: 7, Status: queue.StatusFailed},
				{Row: 8, Status: queue.StatusWaiting},
				{Row: 9, Status: queue.StatusWaiting},
			},
			wantRow: 8,
			wantOK:  true,
		},
		{
			name: "terminal rows are never selected",
			jobs: []queue.Job{
				{Row: 2, Status: queue.StatusDone},
				{Row: 3, Status: queue.StatusFailed},
			},
		},
		{
			name: "empty queue",
			jobs: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job, ok := pipeline.SelectNext(tc.jobs)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if job.Row != tc.wantRow {
				t.Fatalf("selected row %d, want %d", job.Row, tc.wantRow)
			}
		})
	}
}

func TestSelectNextDoesNotReorderInput(t *testing.T) {
	early := time.Date(2026, 3, 14, 6, 0, 0, 0, time.Local)
	jobs := []queue.Job{
		{Row: 2, Status: queue.StatusWaiting},
		{Row: 3, Status: queue.StatusWaiting, ScheduledAt: &early},
	}

	job, ok := pipeline.SelectNext(jobs)
	if !ok || job.Row != 3 {
		t.Fatalf("selected %+v, want row 3", job)
	}
	if jobs[0].Row != 2 || jobs[1].Row != 3 {
		t.Fatalf("input slice reordered: %+v", jobs)
	}
}

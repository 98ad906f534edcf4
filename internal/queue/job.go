package queue

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// StartedAtLayout is the machine-written format of the processing-start
// cell. RFC3339 keeps reclaim arithmetic immune to timezone guessing.
const StartedAtLayout = time.RFC3339

// scheduledLayouts are the accepted human-entered formats for the
// scheduled-time column, interpreted in local time.
var scheduledLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02",
}

// Job is one spreadsheet row. Row is the 1-based sheet row number and the
// job's stable identity; rows are never moved or deleted by the pipeline.
type Job struct {
	Row                 int
	Status              Status
	Script              string
	ScheduledAt         *time.Time
	TitleOverride       string
	ThumbnailOverride   string
	ResultURL           string
	ErrorMessage        string
	CostEstimate        float64
	ProcessingStartedAt *time.Time
}

// Scheduled reports whether the row carries a parseable scheduled time.
func (j Job) Scheduled() bool { return j.ScheduledAt != nil }

// Field names one updatable column of a job row.
type Field string

const (
	FieldStatus    Field = "status"
	FieldResultURL Field = "result_url"
	FieldError     Field = "error"
	FieldCost      Field = "cost"
	FieldStartedAt Field = "started_at"
)

// Store is the narrow contract between the pipeline and the spreadsheet.
type Store interface {
	// ReadRows returns every job row. An empty queue is ([]Job{}, nil);
	// only backend faults produce errors.
	ReadRows(ctx context.Context) ([]Job, error)
	// UpdateCell rewrites a single cell of the given row.
	UpdateCell(ctx context.Context, row int, field Field, value string) error
}

// MarkProcessing claims a row: processing start stamp, cleared error, then
// the status cell.
func MarkProcessing(ctx context.Context, s Store, row int, startedAt time.Time) error {
	if err := s.UpdateCell(ctx, row, FieldStartedAt, startedAt.UTC().Format(StartedAtLayout)); err != nil {
		return err
	}
	if err := s.UpdateCell(ctx, row, FieldError, ""); err != nil {
		return err
	}
	return s.UpdateCell(ctx, row, FieldStatus, StatusProcessing.Label())
}

// MarkDone records the published URL and then flips the status. The status
// cell is always written last so a crash never leaves a Done row without
// its result.
func MarkDone(ctx context.Context, s Store, row int, resultURL string) error {
	if err := s.UpdateCell(ctx, row, FieldResultURL, resultURL); err != nil {
		return err
	}
	return s.UpdateCell(ctx, row, FieldStatus, StatusDone.Label())
}

// MarkFailed records the operator-facing reason and then flips the status.
func MarkFailed(ctx context.Context, s Store, row int, message string) error {
	if err := s.UpdateCell(ctx, row, FieldError, message); err != nil {
		return err
	}
	return s.UpdateCell(ctx, row, FieldStatus, StatusFailed.Label())
}

// UpdateCost writes the accumulated provider cost estimate for the row.
func UpdateCost(ctx context.Context, s Store, row int, cost float64) error {
	return s.UpdateCell(ctx, row, FieldCost, strconv.FormatFloat(cost, 'f', 4, 64))
}

// ParseSheetTime interprets a timestamp cell. Machine-written cells use
// RFC3339; human-entered cells fall back to local-time layouts. Returns
// nil for blank or unparseable values so a typo never wedges the queue.
func ParseSheetTime(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &ts
	}
	for _, layout := range scheduledLayouts {
		if ts, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return &ts
		}
	}
	return nil
}

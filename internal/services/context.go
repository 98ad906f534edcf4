package services

import "context"

type contextKey string

const (
	jobRowKey  contextKey = "job_row"
	stageKey   contextKey = "stage"
	cycleIDKey contextKey = "cycle_id"
)

// WithJobRow annotates context with the sheet row of the job being processed.
func WithJobRow(ctx context.Context, row int) context.Context {
	return context.WithValue(ctx, jobRowKey, row)
}

// JobRowFromContext extracts the job row if present.
func JobRowFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(jobRowKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithCycleID annotates context with the cycle correlation identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the cycle correlation identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

package pipeline

import "time"

// State is the orchestrator's position within the current cycle.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateSynthesizing
	StateAssetGenerating
	StateRendering
	StateValidating
	StatePublishing
	StateCompleted
	StateFailed
)

// String returns the ASCII name used in logs and API payloads.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateSynthesizing:
		return "synthesizing"
	case StateAssetGenerating:
		return "asset_generating"
	case StateRendering:
		return "rendering"
	case StateValidating:
		return "validating"
	case StatePublishing:
		return "publishing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleOutcome is the terminal disposition of one cycle.
type CycleOutcome string

const (
	// OutcomeCompleted means a job was driven to Done.
	OutcomeCompleted CycleOutcome = "completed"
	// OutcomeFailed means a job was claimed and marked Failed.
	OutcomeFailed CycleOutcome = "failed"
	// OutcomeNothingToDo means no eligible row was waiting.
	OutcomeNothingToDo CycleOutcome = "nothing_to_do"
	// OutcomeBusy means a live claim (here or on the sheet) held the
	// single-flight rule.
	OutcomeBusy CycleOutcome = "busy"
	// OutcomeStoreUnavailable means the queue read failed and the cycle
	// aborted without writes.
	OutcomeStoreUnavailable CycleOutcome = "store_unavailable"
	// OutcomeAborted means a sheet write failed or shutdown interrupted
	// the cycle mid-job; no further writes were attempted.
	OutcomeAborted CycleOutcome = "aborted"
)

// CycleResult summarizes one finished cycle.
type CycleResult struct {
	CycleID      string
	Outcome      CycleOutcome
	JobRow       int
	ResultURL    string
	ErrorMessage string
	Cost         float64
	Attempts     int
	StartedAt    time.Time
	Duration     time.Duration
}

// Snapshot is a point-in-time view of the orchestrator for status surfaces.
type Snapshot struct {
	State      State
	ActiveRow  int
	LastResult *CycleResult
}

package api

import (
	"strconv"
	"time"
	"unicode/utf8"

	"vidpipe/internal/deps"
	"vidpipe/internal/journal"
	"vidpipe/internal/pipeline"
	"vidpipe/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = time.RFC3339

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CycleSummary is one recorded orchestrator cycle in transport form.
type CycleSummary struct {
	CycleID      string `json:"cycleId"`
	Outcome      string `json:"outcome"`
	JobRow       int64  `json:"jobRow,omitempty"`
	ResultURL    string `json:"resultUrl,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	State        string             `json:"state"`
	ActiveRow    int                `json:"activeRow,omitempty"`
	LockPath     string             `json:"lockPath,omitempty"`
	JournalPath  string             `json:"journalPath,omitempty"`
	QueueDepth   int                `json:"queueDepth"`
	QueueStats   map[string]int     `json:"queueStats,omitempty"`
	QueueError   string             `json:"queueError,omitempty"`
	LastCycle    *CycleSummary      `json:"lastCycle,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// TriggerResponse reports the outcome of one manually triggered cycle.
type TriggerResponse struct {
	Outcome         string  `json:"outcome"`
	JobRow          int     `json:"jobRow,omitempty"`
	ResultURL       string  `json:"resultUrl,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	Cost            float64 `json:"cost,omitempty"`
	Attempts        int     `json:"attempts,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// QueueRow describes one sheet row in a transport-friendly format. Script
// text is summarized as a character count; the full script never leaves
// the pipeline.
type QueueRow struct {
	Row          int    `json:"row"`
	Status       string `json:"status"`
	ScheduledAt  string `json:"scheduledAt,omitempty"`
	Title        string `json:"title,omitempty"`
	ScriptChars  int    `json:"scriptChars"`
	ResultURL    string `json:"resultUrl,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Cost         string `json:"cost,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
}

// QueueListResponse combines the live sheet view with recent journal
// history. QueueError is set when the sheet was unreachable; history is
// still served from the local journal in that case.
type QueueListResponse struct {
	Rows       []QueueRow     `json:"rows"`
	History    []CycleSummary `json:"history,omitempty"`
	QueueError string         `json:"queueError,omitempty"`
}

// FromCycleResult converts an orchestrator cycle result for transport.
func FromCycleResult(result pipeline.CycleResult) TriggerResponse {
	return TriggerResponse{
		Outcome:         string(result.Outcome),
		JobRow:          result.JobRow,
		ResultURL:       result.ResultURL,
		ErrorMessage:    result.ErrorMessage,
		Cost:            result.Cost,
		Attempts:        result.Attempts,
		DurationSeconds: result.Duration.Seconds(),
	}
}

// SummaryFromResult converts a cycle result into the journal-shaped summary
// used by status payloads.
func SummaryFromResult(result pipeline.CycleResult) CycleSummary {
	summary := CycleSummary{
		CycleID:      result.CycleID,
		Outcome:      string(result.Outcome),
		JobRow:       int64(result.JobRow),
		ResultURL:    result.ResultURL,
		ErrorMessage: result.ErrorMessage,
	}
	if !result.StartedAt.IsZero() {
		summary.StartedAt = result.StartedAt.UTC().Format(dateTimeFormat)
		summary.FinishedAt = result.StartedAt.Add(result.Duration).UTC().Format(dateTimeFormat)
	}
	return summary
}

// FromJournalCycle converts a persisted cycle row for transport.
func FromJournalCycle(cycle *journal.Cycle) CycleSummary {
	if cycle == nil {
		return CycleSummary{}
	}
	summary := CycleSummary{
		CycleID:      cycle.CycleID,
		Outcome:      cycle.Outcome,
		JobRow:       cycle.JobRow,
		ResultURL:    cycle.ResultURL,
		ErrorMessage: cycle.ErrorMessage,
		StartedAt:    cycle.StartedAt.UTC().Format(dateTimeFormat),
	}
	if cycle.FinishedAt != nil {
		summary.FinishedAt = cycle.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return summary
}

// FromJob converts a sheet row for transport.
func FromJob(job queue.Job) QueueRow {
	row := QueueRow{
		Row:          job.Row,
		Status:       job.Status.String(),
		Title:        job.TitleOverride,
		ScriptChars:  utf8.RuneCountInString(job.Script),
		ResultURL:    job.ResultURL,
		ErrorMessage: job.ErrorMessage,
	}
	if job.CostEstimate > 0 {
		row.Cost = strconv.FormatFloat(job.CostEstimate, 'f', 4, 64)
	}
	if job.ScheduledAt != nil {
		row.ScheduledAt = job.ScheduledAt.UTC().Format(dateTimeFormat)
	}
	if job.ProcessingStartedAt != nil {
		row.StartedAt = job.ProcessingStartedAt.UTC().Format(dateTimeFormat)
	}
	return row
}

// FromDependency converts a preflight check result for transport.
func FromDependency(status deps.Status) DependencyStatus {
	return DependencyStatus{
		Name:        status.Name,
		Command:     status.Command,
		Description: status.Description,
		Optional:    status.Optional,
		Available:   status.Available,
		Detail:      status.Detail,
	}
}

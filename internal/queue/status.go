package queue

import "strings"

// Status is the lifecycle position of a job row. The spreadsheet stores the
// Korean labels; Status is the internal representation.
type Status int

const (
	StatusUnknown Status = iota
	StatusWaiting
	StatusProcessing
	StatusDone
	StatusFailed
)

const (
	labelWaiting    = "대기"
	labelProcessing = "처리중"
	labelDone       = "완료"
	labelFailed     = "실패"
)

// Label returns the cell text written to the sheet for this status.
func (s Status) Label() string {
	switch s {
	case StatusWaiting:
		return labelWaiting
	case StatusProcessing:
		return labelProcessing
	case StatusDone:
		return labelDone
	case StatusFailed:
		return labelFailed
	default:
		return ""
	}
}

// String returns the ASCII name used in logs and API payloads.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusProcessing:
		return "processing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the status needs external action to change.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ParseStatus maps a sheet cell or API value onto a Status. Both the Korean
// cell labels and the ASCII names are accepted.
func ParseStatus(value string) (Status, bool) {
	switch strings.TrimSpace(value) {
	case labelWaiting:
		return StatusWaiting, true
	case labelProcessing:
		return StatusProcessing, true
	case labelDone:
		return StatusDone, true
	case labelFailed:
		return StatusFailed, true
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "waiting":
		return StatusWaiting, true
	case "processing":
		return StatusProcessing, true
	case "done":
		return StatusDone, true
	case "failed":
		return StatusFailed, true
	}
	return StatusUnknown, false
}

package publish

import (
	"fmt"
	"strings"

	"google.golang.org/api/youtube/v3"
)

// StateKind tags the processing states the poller can act on.
type StateKind int

const (
	// StateProcessing means the platform is still working; keep polling.
	StateProcessing StateKind = iota
	// StateProcessed means the video is accepted and playable.
	StateProcessed
	// StateRejected means the platform refused the video outright.
	StateRejected
	// StateFailed means processing started and broke.
	StateFailed
	// StateUnparseable covers status payloads this client does not know.
	// The poller keeps waiting on these until the budget runs out.
	StateUnparseable
)

// State is one observation of the platform's processing status. Reason
// carries the platform's stated reason word for word; RawStatus preserves
// payloads the tagging logic could not place.
type State struct {
	Kind      StateKind
	Reason    string
	RawStatus string
}

func stateOf(video *youtube.Video) State {
	if video == nil || video.Status == nil {
		return State{Kind: StateUnparseable, RawStatus: "<no status>"}
	}
	status := video.Status
	switch status.UploadStatus {
	case "processed":
		return State{Kind: StateProcessed}
	case "rejected":
		return State{Kind: StateRejected, Reason: platformReason(video, status.RejectionReason)}
	case "failed":
		return State{Kind: StateFailed, Reason: platformReason(video, status.FailureReason)}
	case "deleted":
		return State{Kind: StateFailed, Reason: "deleted during processing"}
	case "uploaded":
		return State{Kind: StateProcessing}
	default:
		return State{Kind: StateUnparseable, RawStatus: rawStatus(video)}
	}
}

// platformReason prefers the explicit reason field, falling back to the
// processing failure reason before giving up with the bare status.
func platformReason(video *youtube.Video, reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return reason
	}
	if video.ProcessingDetails != nil {
		if reason := strings.TrimSpace(video.ProcessingDetails.ProcessingFailureReason); reason != "" {
			return reason
		}
	}
	return video.Status.UploadStatus
}

func rawStatus(video *youtube.Video) string {
	parts := []string{fmt.Sprintf("uploadStatus=%q", video.Status.UploadStatus)}
	if video.Status.RejectionReason != "" {
		parts = append(parts, fmt.Sprintf("rejectionReason=%q", video.Status.RejectionReason))
	}
	if video.Status.FailureReason != "" {
		parts = append(parts, fmt.Sprintf("failureReason=%q", video.Status.FailureReason))
	}
	if video.ProcessingDetails != nil && video.ProcessingDetails.ProcessingStatus != "" {
		parts = append(parts, fmt.Sprintf("processingStatus=%q", video.ProcessingDetails.ProcessingStatus))
	}
	return strings.Join(parts, " ")
}

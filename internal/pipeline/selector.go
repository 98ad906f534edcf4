package pipeline

import (
	"sort"
	"time"

	"vidpipe/internal/queue"
)

// SelectNext picks the row the next cycle should claim. While any row is
// Processing nothing is selected, whatever its age; reclaim handles stale
// claims before selection runs. Among Waiting rows, scheduled ones come
// first ordered by their scheduled time, then unscheduled ones in sheet
// order.
func SelectNext(jobs []queue.Job) (*queue.Job, bool) {
	for _, job := range jobs {
		if job.Status == queue.StatusProcessing {
			return nil, false
		}
	}

	eligible := make([]queue.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Status == queue.StatusWaiting {
			eligible = append(eligible, job)
		}
	}
	if len(eligible) == 0 {
		return nil, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		switch {
		case a.Scheduled() && !b.Scheduled():
			return true
		case !a.Scheduled() && b.Scheduled():
			return false
		case a.Scheduled() && b.Scheduled():
			return a.ScheduledAt.Before(*b.ScheduledAt)
		default:
			return false
		}
	})

	selected := eligible[0]
	return &selected, true
}

// claimExpired reports whether a Processing row's claim has outlived the
// reclaim window at now. A claim without a start stamp is expired
// immediately: it could never age out otherwise.
func claimExpired(job queue.Job, now time.Time, window time.Duration) bool {
	if job.ProcessingStartedAt == nil {
		return true
	}
	return now.Sub(*job.ProcessingStartedAt) > window
}

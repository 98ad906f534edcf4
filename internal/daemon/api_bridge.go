package daemon

import (
	"context"

	"vidpipe/internal/api"
)

// controller adapts the daemon to the HTTP handler contract, converting
// native types into transport DTOs at the boundary.
type controller struct {
	d *Daemon
}

// Controller exposes the DTO-converting view of the daemon. The IPC
// service reuses it so socket and HTTP payloads cannot drift apart.
func (d *Daemon) Controller() api.Controller {
	return controller{d: d}
}

func (c controller) Status(ctx context.Context) api.DaemonStatus {
	return toDaemonStatus(c.d.Status(ctx))
}

func (c controller) TriggerCycle(ctx context.Context) (api.TriggerResponse, error) {
	result, err := c.d.TriggerCycle(ctx)
	resp := api.FromCycleResult(result)
	if err != nil && resp.ErrorMessage == "" {
		resp.ErrorMessage = err.Error()
	}
	return resp, err
}

func (c controller) QueueSnapshot(ctx context.Context, history int) (api.QueueListResponse, error) {
	jobs, cycles, queueErr, err := c.d.QueueSnapshot(ctx, history)
	if err != nil {
		return api.QueueListResponse{}, err
	}
	resp := api.QueueListResponse{QueueError: queueErr}
	if len(jobs) > 0 {
		resp.Rows = make([]api.QueueRow, 0, len(jobs))
		for _, job := range jobs {
			resp.Rows = append(resp.Rows, api.FromJob(job))
		}
	}
	if len(cycles) > 0 {
		resp.History = make([]api.CycleSummary, 0, len(cycles))
		for _, cycle := range cycles {
			resp.History = append(resp.History, api.FromJournalCycle(cycle))
		}
	}
	return resp, nil
}

func toDaemonStatus(status Status) api.DaemonStatus {
	out := api.DaemonStatus{
		Running:     status.Running,
		PID:         status.PID,
		State:       status.State,
		ActiveRow:   status.ActiveRow,
		LockPath:    status.LockPath,
		JournalPath: status.JournalPath,
		QueueDepth:  status.QueueDepth,
		QueueStats:  status.QueueStats,
		QueueError:  status.QueueError,
	}
	if status.LastCycle != nil {
		summary := api.FromJournalCycle(status.LastCycle)
		out.LastCycle = &summary
	}
	if len(status.Dependencies) > 0 {
		out.Dependencies = make([]api.DependencyStatus, 0, len(status.Dependencies))
		for _, dep := range status.Dependencies {
			out.Dependencies = append(out.Dependencies, api.FromDependency(dep))
		}
	}
	return out
}

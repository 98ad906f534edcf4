package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"vidpipe/internal/api"
	"vidpipe/internal/config"
	"vidpipe/internal/deps"
	"vidpipe/internal/journal"
	"vidpipe/internal/logging"
	"vidpipe/internal/pipeline"
	"vidpipe/internal/queue"
)

// Daemon owns the poll loop and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   queue.Store
	orch    *pipeline.Orchestrator
	journal *journal.Store

	lockPath string
	lock     *flock.Flock

	api *api.Server

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	triggers chan triggerRequest
	wg       sync.WaitGroup

	stopped  chan struct{}
	stopOnce sync.Once
}

type triggerRequest struct {
	resp chan triggerReply
}

type triggerReply struct {
	result pipeline.CycleResult
	err    error
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	PID         int
	State       string
	ActiveRow   int
	LockPath    string
	JournalPath string

	// QueueStats counts sheet rows by status; QueueDepth is the waiting
	// count. QueueError is set instead when the sheet read failed.
	QueueStats map[string]int
	QueueDepth int
	QueueError string

	LastCycle    *journal.Cycle
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies. The journal may
// be nil; status payloads simply omit history then.
func New(cfg *config.Config, store queue.Store, orch *pipeline.Orchestrator, jrnl *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, and orchestrator")
	}
	lockPath := strings.TrimSpace(cfg.Daemon.LockPath)
	if lockPath == "" {
		lockPath = filepath.Join(cfg.Paths.LogDir, "vidpipe.lock")
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		orch:     orch,
		journal:  jrnl,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		triggers: make(chan triggerRequest),
		stopped:  make(chan struct{}),
	}
	d.api = api.NewServer(cfg.Daemon.APIBind, controller{d}, d.logger)
	return d, nil
}

// Start acquires the daemon lock, starts the API server, and launches the
// poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidpipe daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.logStartupChecks()

	d.wg.Add(1)
	go d.pollLoop()

	d.running.Store(true)
	d.logger.Info("vidpipe daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Duration("poll_interval", d.pollInterval()),
	)
	return nil
}

// Stop halts the poll loop, shuts down the API server, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.api.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vidpipe daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"))
	d.stopOnce.Do(func() { close(d.stopped) })
}

// Done is closed after the first completed Stop. The daemon runner waits
// on it so a stop request over IPC ends the process.
func (d *Daemon) Done() <-chan struct{} {
	return d.stopped
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// APIAddr returns the bound HTTP address, or "" when the API server is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

func (d *Daemon) pollInterval() time.Duration {
	interval := d.cfg.PollInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	return interval
}

// pollLoop runs one cycle per interval and services manual triggers. All
// cycles run on this goroutine, so a trigger landing mid-cycle waits for
// the active cycle instead of overlapping it.
func (d *Daemon) pollLoop() {
	defer d.wg.Done()

	interval := d.pollInterval()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			d.runCycle(nil)
			timer.Reset(interval)
		case req := <-d.triggers:
			d.runCycle(&req)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
		}
	}
}

func (d *Daemon) runCycle(req *triggerRequest) {
	result, err := d.orch.RunCycle(d.ctx)
	if req != nil {
		req.resp <- triggerReply{result: result, err: err}
	}
}

// TriggerCycle runs one cycle immediately and returns its result. The
// request is serviced by the poll loop; if a scheduled cycle is already
// running the trigger waits for it to finish and then runs.
func (d *Daemon) TriggerCycle(ctx context.Context) (pipeline.CycleResult, error) {
	if !d.running.Load() {
		return pipeline.CycleResult{}, errors.New("daemon not running")
	}

	req := triggerRequest{resp: make(chan triggerReply, 1)}
	select {
	case d.triggers <- req:
	case <-ctx.Done():
		return pipeline.CycleResult{}, ctx.Err()
	case <-d.ctx.Done():
		return pipeline.CycleResult{}, errors.New("daemon stopped")
	}

	select {
	case reply := <-req.resp:
		return reply.result, reply.err
	case <-ctx.Done():
		return pipeline.CycleResult{}, ctx.Err()
	}
}

// Status returns the current daemon status. The sheet read is tolerated to
// fail so status stays available during provider outages.
func (d *Daemon) Status(ctx context.Context) Status {
	snap := d.orch.Snapshot()
	status := Status{
		Running:   d.running.Load(),
		PID:       os.Getpid(),
		State:     snap.State.String(),
		ActiveRow: snap.ActiveRow,
		LockPath:  d.lockPath,
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
		if last, err := d.journal.LastCycle(ctx); err == nil && last != nil {
			status.LastCycle = last
		}
	}

	jobs, err := d.store.ReadRows(ctx)
	if err != nil {
		status.QueueError = err.Error()
	} else {
		status.QueueStats = make(map[string]int, 4)
		for _, job := range jobs {
			status.QueueStats[job.Status.String()]++
			if job.Status == queue.StatusWaiting {
				status.QueueDepth++
			}
		}
	}

	status.Dependencies = deps.Check(d.cfg)
	return status
}

// QueueSnapshot returns the live sheet rows plus up to history journal
// cycles. A failed sheet read is reported inline so journal history stays
// available while the store is down.
func (d *Daemon) QueueSnapshot(ctx context.Context, history int) ([]queue.Job, []*journal.Cycle, string, error) {
	var queueErr string
	jobs, err := d.store.ReadRows(ctx)
	if err != nil {
		queueErr = err.Error()
		jobs = nil
	}

	var cycles []*journal.Cycle
	if history > 0 && d.journal != nil {
		cycles, err = d.journal.RecentCycles(ctx, history)
		if err != nil {
			return nil, nil, queueErr, fmt.Errorf("read journal: %w", err)
		}
	}
	return jobs, cycles, queueErr, nil
}

// logStartupChecks surfaces dependency problems early. Failures are
// warnings, not errors: the daemon still starts so the operator can fix
// configuration while it idles.
func (d *Daemon) logStartupChecks() {
	for _, status := range deps.Check(d.cfg) {
		if status.Available {
			continue
		}
		d.logger.Warn("dependency unavailable",
			logging.String(logging.FieldEventType, "dependency_missing"),
			logging.String("name", status.Name),
			logging.String("detail", status.Detail),
		)
	}
}

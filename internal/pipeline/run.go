package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidpipe/internal/logging"
	"vidpipe/internal/notifications"
	"vidpipe/internal/queue"
	"vidpipe/internal/render"
	"vidpipe/internal/services"
	"vidpipe/internal/services/imagegen"
	"vidpipe/internal/services/publish"
	"vidpipe/internal/services/scriptanalysis"
	"vidpipe/internal/services/synthesis"
)

// cycleState threads one cycle's journal handle and accounting through
// the stage run.
type cycleState struct {
	journalRow int64
	result     *CycleResult
}

// RunCycle executes one poll cycle: read the queue, reclaim stale claims,
// select, and process. A concurrent cycle yields OutcomeBusy immediately.
// The returned error reports cycle-level faults (store unavailable, write
// aborts, shutdown); a job driven to Failed is a normal outcome, not an
// error.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleResult, error) {
	if !o.cycleMu.TryLock() {
		return CycleResult{Outcome: OutcomeBusy}, nil
	}
	defer o.cycleMu.Unlock()

	cycleID := uuid.NewString()
	ctx = services.WithCycleID(ctx, cycleID)
	logger := logging.WithContext(ctx, o.logger)

	result := CycleResult{CycleID: cycleID, StartedAt: o.now()}
	cs := &cycleState{
		result:     &result,
		journalRow: o.journalBegin(ctx, logger, cycleID),
	}

	o.setState(StateSelecting, 0)
	logger.Info("cycle started", logging.String(logging.FieldEventType, "cycle_start"))

	err := o.cycle(ctx, logger, cs)

	result.Duration = o.now().Sub(result.StartedAt)
	o.journalFinish(ctx, logger, cs)
	o.finish(result)

	logger.Info("cycle finished",
		logging.String(logging.FieldEventType, "cycle_finish"),
		logging.String(logging.FieldOutcome, string(result.Outcome)),
		logging.Int(logging.FieldJobID, result.JobRow),
		logging.Duration(logging.FieldDuration, result.Duration),
	)
	return result, err
}

func (o *Orchestrator) cycle(ctx context.Context, logger *slog.Logger, cs *cycleState) error {
	result := cs.result

	jobs, err := o.store.ReadRows(ctx)
	if err != nil {
		if ctx.Err() != nil {
			result.Outcome = OutcomeAborted
			result.ErrorMessage = "interrupted by shutdown"
			return err
		}
		result.Outcome = OutcomeStoreUnavailable
		result.ErrorMessage = err.Error()
		logger.Error("queue read failed, cycle aborted",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cycle_abort"),
		)
		if !o.storeDown {
			o.storeDown = true
			o.notify(ctx, notifications.EventQueueStalled, notifications.Payload{
				"reason": "queue store unreachable",
			})
		}
		return fmt.Errorf("read queue: %w", err)
	}
	o.storeDown = false

	// Reclaim before selection so an abandoned claim frees the queue in
	// the same cycle that notices it.
	window := o.cfg.ReclaimTimeout()
	now := o.now()
	busy := false
	for i := range jobs {
		job := jobs[i]
		if job.Status != queue.StatusProcessing {
			continue
		}
		if !claimExpired(job, now, window) {
			busy = true
			continue
		}
		message := fmt.Sprintf("%s: processing exceeded %s", services.ErrAbandoned.Error(), window)
		if err := queue.MarkFailed(ctx, o.store, job.Row, message); err != nil {
			result.Outcome = OutcomeAborted
			result.ErrorMessage = err.Error()
			logger.Error("reclaim write failed, cycle aborted",
				logging.Error(err),
				logging.Int(logging.FieldJobID, job.Row),
				logging.String(logging.FieldEventType, "cycle_abort"),
			)
			return fmt.Errorf("reclaim row %d: %w", job.Row, err)
		}
		jobs[i].Status = queue.StatusFailed
		logger.Warn("reclaimed abandoned claim",
			logging.Int(logging.FieldJobID, job.Row),
			logging.String(logging.FieldEventType, "job_reclaimed"),
		)
		o.notify(ctx, notifications.EventJobFailed, notifications.Payload{
			"row":   strconv.Itoa(job.Row),
			"error": message,
		})
	}
	if busy {
		result.Outcome = OutcomeBusy
		logger.Debug("live claim holds the queue")
		return nil
	}

	selected, ok := SelectNext(jobs)
	if !ok {
		result.Outcome = OutcomeNothingToDo
		return nil
	}

	return o.process(ctx, logger, *selected, cs)
}

func (o *Orchestrator) process(ctx context.Context, logger *slog.Logger, job queue.Job, cs *cycleState) error {
	result := cs.result
	ctx = services.WithJobRow(ctx, job.Row)
	logger = logging.WithContext(ctx, o.logger)
	result.JobRow = job.Row

	if err := queue.MarkProcessing(ctx, o.store, job.Row, o.now()); err != nil {
		result.Outcome = OutcomeAborted
		result.ErrorMessage = err.Error()
		logger.Error("claim write failed, cycle aborted",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cycle_abort"),
		)
		return fmt.Errorf("claim row %d: %w", job.Row, err)
	}

	var (
		published publish.Result
		title     string
	)
	workDir, err := o.jobWorkDir(job.Row)
	if err == nil {
		published, title, err = o.runStages(ctx, logger, job, workDir, cs)
	}

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			result.Outcome = OutcomeAborted
			result.ErrorMessage = "interrupted by shutdown"
			logger.Warn("cycle interrupted; row stays processing until reclaimed",
				logging.String(logging.FieldEventType, "cycle_abort"),
			)
			return err
		}
		return o.failJob(ctx, logger, job, title, err, cs)
	}

	// Cost first, result URL next, the status flip last.
	if result.Cost > 0 {
		if err := queue.UpdateCost(ctx, o.store, job.Row, result.Cost); err != nil {
			return o.abortWrite(logger, cs, job.Row, "cost", err)
		}
	}
	if err := queue.MarkDone(ctx, o.store, job.Row, published.URL); err != nil {
		return o.abortWrite(logger, cs, job.Row, "done status", err)
	}
	result.Outcome = OutcomeCompleted
	result.ResultURL = published.URL
	o.setState(StateCompleted, job.Row)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("url", published.URL),
	)
	o.notify(ctx, notifications.EventJobCompleted, notifications.Payload{
		"row":   strconv.Itoa(job.Row),
		"title": title,
		"url":   published.URL,
	})
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("could not remove job workspace", logging.Error(err))
	}
	return nil
}

// failJob records the failure on the sheet and keeps the workspace for
// inspection.
func (o *Orchestrator) failJob(ctx context.Context, logger *slog.Logger, job queue.Job, title string, stageErr error, cs *cycleState) error {
	result := cs.result
	message := failureMessage(stageErr)
	result.Outcome = OutcomeFailed
	result.ErrorMessage = message
	o.setState(StateFailed, job.Row)
	logger.Error("job failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "job_failed"),
	)

	if result.Cost > 0 {
		if err := queue.UpdateCost(ctx, o.store, job.Row, result.Cost); err != nil {
			return o.abortWrite(logger, cs, job.Row, "cost", err)
		}
	}
	if err := queue.MarkFailed(ctx, o.store, job.Row, message); err != nil {
		return o.abortWrite(logger, cs, job.Row, "failed status", err)
	}
	o.notify(ctx, notifications.EventJobFailed, notifications.Payload{
		"row":   strconv.Itoa(job.Row),
		"title": title,
		"error": message,
	})
	return nil
}

func (o *Orchestrator) abortWrite(logger *slog.Logger, cs *cycleState, row int, cell string, err error) error {
	cs.result.Outcome = OutcomeAborted
	cs.result.ErrorMessage = err.Error()
	logger.Error("sheet write failed, cycle aborted",
		logging.Error(err),
		logging.String("cell", cell),
		logging.String(logging.FieldEventType, "cycle_abort"),
	)
	return fmt.Errorf("write %s for row %d: %w", cell, row, err)
}

func (o *Orchestrator) runStages(ctx context.Context, logger *slog.Logger, job queue.Job, workDir string, cs *cycleState) (publish.Result, string, error) {
	var (
		synthRes  synthesis.Result
		plan      scriptanalysis.Plan
		assets    imagegen.Result
		videoPath string
		published publish.Result
	)

	o.setState(StateSynthesizing, job.Row)
	audioPath := filepath.Join(workDir, "narration.mp3")
	err := o.runStage(ctx, logger, cs, "synthesize", o.seconds(o.cfg.Workflow.SynthesisTimeout), func(ctx context.Context) error {
		var stageErr error
		synthRes, stageErr = o.stages.Synth.Synthesize(ctx, job.Script, audioPath)
		return stageErr
	})
	if err != nil {
		return published, "", err
	}
	cs.result.Cost += float64(synthRes.Characters) / 1000 * o.cfg.Synthesis.CostPer1KChars

	o.setState(StateAssetGenerating, job.Row)
	err = o.runStage(ctx, logger, cs, "analyze", o.seconds(o.cfg.Workflow.AnalysisTimeout), func(ctx context.Context) error {
		var stageErr error
		plan, stageErr = o.stages.Analyzer.Analyze(ctx, job.Script)
		return stageErr
	})
	if err != nil {
		return published, "", err
	}
	cs.result.Cost += o.cfg.ScriptAnalysis.CostPerCall

	// Row overrides beat whatever the model proposed.
	title := strings.TrimSpace(job.TitleOverride)
	if title == "" {
		title = plan.Title
	}
	thumbnailPrompt := plan.ThumbnailPrompt
	if override := strings.TrimSpace(job.ThumbnailOverride); override != "" {
		thumbnailPrompt = override
	}

	prompts := make([]string, len(plan.Scenes))
	for i, scene := range plan.Scenes {
		prompts[i] = scene.Prompt
	}
	err = o.runStage(ctx, logger, cs, "assets", o.seconds(o.cfg.Workflow.AssetTimeout), func(ctx context.Context) error {
		var stageErr error
		assets, stageErr = o.stages.Assets.Generate(ctx, prompts, thumbnailPrompt, workDir)
		return stageErr
	})
	if err != nil {
		return published, title, err
	}
	cs.result.Cost += float64(assets.Images) * o.cfg.ImageGen.CostPerImage

	o.setState(StateRendering, job.Row)
	scenes := make([]render.Scene, len(assets.ScenePaths))
	for i, path := range assets.ScenePaths {
		scenes[i] = render.Scene{Image: path}
		if i < len(plan.Scenes) {
			scenes[i].Duration = plan.Scenes[i].DurationHint
		}
	}
	err = o.runStage(ctx, logger, cs, "render", o.renderBudget(ctx, audioPath), func(ctx context.Context) error {
		var stageErr error
		videoPath, stageErr = o.stages.Renderer.Render(ctx, render.Plan{
			AudioPath: audioPath,
			Scenes:    scenes,
			WorkDir:   workDir,
		})
		return stageErr
	})
	if err != nil {
		return published, title, err
	}

	o.setState(StateValidating, job.Row)
	err = o.runStage(ctx, logger, cs, "validate", o.seconds(o.cfg.Workflow.ValidationTimeout), func(ctx context.Context) error {
		return o.stages.Validator.Validate(ctx, videoPath)
	})
	if err != nil {
		return published, title, err
	}

	o.setState(StatePublishing, job.Row)
	req := publish.Request{
		VideoPath:     videoPath,
		Title:         title,
		ThumbnailPath: assets.ThumbnailPath,
	}
	if job.ScheduledAt != nil {
		req.ScheduledAt = *job.ScheduledAt
	}
	err = o.runStage(ctx, logger, cs, "publish", o.seconds(o.cfg.Workflow.PublishTimeout), func(ctx context.Context) error {
		var stageErr error
		published, stageErr = o.stages.Publisher.Publish(ctx, req)
		return stageErr
	})
	if err != nil {
		return published, title, err
	}
	return published, title, nil
}

// runStage drives one stage through its timeout and retry budget.
// Transient faults and in-budget timeouts retry after the configured
// delay; rejections, validation failures, and configuration faults
// escalate at once.
func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, cs *cycleState, stage string, timeout time.Duration, fn func(context.Context) error) error {
	attempts := o.cfg.Workflow.StageAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(o.cfg.Workflow.RetryDelay) * time.Second

	stageCtx := services.WithStage(ctx, stage)
	stageLogger := logging.WithContext(stageCtx, o.logger)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		cs.result.Attempts++
		started := o.now()
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.Int(logging.FieldAttempt, attempt),
		)

		attemptCtx := stageCtx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(stageCtx, timeout)
		}
		err := fn(attemptCtx)
		cancel()
		duration := o.now().Sub(started)

		if err == nil {
			o.journalAttempt(ctx, stageLogger, cs, stage, attempt, started, duration, "ok", "")
			stageLogger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration(logging.FieldDuration, duration),
			)
			return nil
		}

		o.journalAttempt(ctx, stageLogger, cs, stage, attempt, started, duration, "error", err.Error())
		lastErr = err

		if ctx.Err() != nil {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		if !services.IsRetryable(err) {
			stageLogger.Error("stage failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Int(logging.FieldAttempt, attempt),
			)
			return err
		}
		if attempt == attempts {
			break
		}
		stageLogger.Warn("stage retrying after transient failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Int(logging.FieldAttempt, attempt),
		)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	stageLogger.Error("stage failed",
		logging.Error(lastErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Int(logging.FieldAttempt, attempts),
	)
	return fmt.Errorf("%s gave up after %d attempts: %w", stage, attempts, lastErr)
}

func (o *Orchestrator) seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// renderBudget probes the narration once so the encoder deadline scales
// with the audio length. An unprobeable file falls back to the flat
// budget; the render stage re-probes and reports the real error.
func (o *Orchestrator) renderBudget(ctx context.Context, audioPath string) time.Duration {
	base := o.seconds(o.cfg.Workflow.RenderTimeout)
	probed, err := o.probe(ctx, o.cfg.Render.FFprobeBinary, audioPath)
	if err != nil {
		return base
	}
	seconds := probed.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return base
	}
	return o.cfg.RenderTimeoutFor(time.Duration(seconds * float64(time.Second)))
}

// jobWorkDir builds a clean per-row workspace. Leftovers from a prior
// run of the same row would poison the render, so the directory is
// recreated on every claim.
func (o *Orchestrator) jobWorkDir(row int) (string, error) {
	dir := filepath.Join(o.cfg.Paths.WorkDir, fmt.Sprintf("job_%04d", row))
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear job workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job workspace: %w", err)
	}
	return dir, nil
}

func failureMessage(err error) string {
	if err == nil {
		return "stage failed"
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return "stage failed"
}

func (o *Orchestrator) journalBegin(ctx context.Context, logger *slog.Logger, cycleID string) int64 {
	if o.journal == nil {
		return 0
	}
	row, err := o.journal.BeginCycle(ctx, cycleID)
	if err != nil {
		logger.Warn("journal begin failed", logging.Error(err))
		return 0
	}
	return row
}

func (o *Orchestrator) journalAttempt(ctx context.Context, logger *slog.Logger, cs *cycleState, stage string, attempt int, started time.Time, duration time.Duration, outcome, message string) {
	if o.journal == nil || cs.journalRow == 0 {
		return
	}
	if err := o.journal.RecordAttempt(ctx, cs.journalRow, stage, attempt, started, duration, outcome, message); err != nil {
		logger.Warn("journal attempt failed", logging.Error(err))
	}
}

func (o *Orchestrator) journalFinish(ctx context.Context, logger *slog.Logger, cs *cycleState) {
	if o.journal == nil || cs.journalRow == 0 {
		return
	}
	result := cs.result
	if err := o.journal.FinishCycle(ctx, cs.journalRow, string(result.Outcome), int64(result.JobRow), result.ResultURL, result.ErrorMessage); err != nil {
		logger.Warn("journal finish failed", logging.Error(err))
	}
}

package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/media/ffprobe"
)

// Scene pairs one still image with its on-screen duration hint in
// seconds. A zero hint means "share the narration evenly".
type Scene struct {
	Image    string
	Duration float64
}

// Plan describes one render job.
type Plan struct {
	AudioPath    string
	Scenes       []Scene
	SubtitlePath string // optional; empty skips the burn-in pass
	WorkDir      string
}

// ProbeFunc inspects a media file. Tests inject canned results.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Option configures the engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// WithProber injects a custom media prober (primarily for tests).
func WithProber(probe ProbeFunc) Option {
	return func(e *Engine) {
		if probe != nil {
			e.probe = probe
		}
	}
}

// Engine drives ffmpeg to compose narration audio and scene stills into
// the published video profile.
type Engine struct {
	cfg    config.Render
	exec   Executor
	probe  ProbeFunc
	logger *slog.Logger
}

// New constructs a render engine.
func New(cfg config.Render, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	engine := &Engine{
		cfg:    cfg,
		exec:   commandExecutor{},
		probe:  ffprobe.Inspect,
		logger: logging.WithComponent(logger, "render"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Render produces the final video for plan and returns its path. The
// video stream is clamped to the probed narration duration and the
// result is re-probed to verify the two streams agree within one frame
// interval.
func (e *Engine) Render(ctx context.Context, plan Plan) (string, error) {
	if plan.AudioPath == "" {
		return "", errors.New("render: audio path required")
	}
	if len(plan.Scenes) == 0 {
		return "", errors.New("render: at least one scene required")
	}
	if plan.WorkDir == "" {
		return "", errors.New("render: work dir required")
	}

	probed, err := e.probe(ctx, e.cfg.FFprobeBinary, plan.AudioPath)
	if err != nil {
		return "", fmt.Errorf("probe narration: %w", err)
	}
	audioDuration := probed.DurationSeconds()
	if math.IsNaN(audioDuration) || audioDuration <= 0 {
		return "", fmt.Errorf("probe narration: unusable duration %v", audioDuration)
	}

	durations := reconcileDurations(plan.Scenes, audioDuration)
	output := filepath.Join(plan.WorkDir, "render.mp4")

	if e.cfg.TransitionDuration > 0 && len(plan.Scenes) > 1 {
		clips, err := e.renderSceneClips(ctx, plan, durations)
		if err != nil {
			return "", err
		}
		listPath := filepath.Join(plan.WorkDir, "clips.txt")
		if err := writeClipList(listPath, clips); err != nil {
			return "", fmt.Errorf("write clip list: %w", err)
		}
		if err := e.encode(ctx, buildAssembleArgs(e.cfg, listPath, plan.AudioPath, audioDuration, output)); err != nil {
			return "", fmt.Errorf("assemble clips: %w", err)
		}
	} else {
		listPath := filepath.Join(plan.WorkDir, "slideshow.txt")
		if err := writeSlideshowList(listPath, plan.Scenes, durations); err != nil {
			return "", fmt.Errorf("write slideshow list: %w", err)
		}
		if err := e.encode(ctx, buildSlideshowArgs(e.cfg, listPath, plan.AudioPath, audioDuration, output)); err != nil {
			return "", fmt.Errorf("encode slideshow: %w", err)
		}
	}

	if plan.SubtitlePath != "" {
		burned := filepath.Join(plan.WorkDir, "render_subtitled.mp4")
		if err := e.encode(ctx, buildSubtitleBurnArgs(e.cfg, output, plan.SubtitlePath, burned)); err != nil {
			return "", fmt.Errorf("burn subtitles: %w", err)
		}
		output = burned
	}

	if err := e.verifySync(ctx, output, audioDuration); err != nil {
		return "", err
	}

	e.logger.Info("render finished",
		logging.String("output", output),
		logging.Int("scenes", len(plan.Scenes)),
		logging.String("narration_seconds", formatSeconds(audioDuration)),
	)
	return output, nil
}

// DecodeProbe decodes the leading seconds of path to the null sink and
// returns the encoder's error when the file does not decode cleanly.
func (e *Engine) DecodeProbe(ctx context.Context, path string, seconds int) error {
	return e.encode(ctx, buildDecodeProbeArgs(path, seconds))
}

func (e *Engine) binary() string {
	if e.cfg.FFmpegBinary != "" {
		return e.cfg.FFmpegBinary
	}
	return "ffmpeg"
}

// encode runs one encoder pass, keeping only the stderr tail for the
// error report.
func (e *Engine) encode(ctx context.Context, args []string) error {
	tail := newLineRing(e.cfg.StderrTailLines)
	start := time.Now()
	if err := e.exec.Run(ctx, e.binary(), args, tail.Append); err != nil {
		if detail := tail.String(); detail != "" {
			return fmt.Errorf("%w\n%s", err, detail)
		}
		return err
	}
	e.logger.Debug("encoder pass finished",
		logging.Duration(logging.FieldDuration, time.Since(start)),
	)
	return nil
}

// renderSceneClips pre-renders each scene through a bounded worker pool.
// The returned slice is indexed by original scene order no matter the
// completion order.
func (e *Engine) renderSceneClips(ctx context.Context, plan Plan, durations []float64) ([]string, error) {
	workers := e.cfg.SceneWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(plan.Scenes) {
		workers = len(plan.Scenes)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clips := make([]string, len(plan.Scenes))
	errs := make([]error, len(plan.Scenes))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, scene := range plan.Scenes {
		wg.Add(1)
		go func(idx int, scene Scene) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			clip := filepath.Join(plan.WorkDir, fmt.Sprintf("scene_%02d.mp4", idx))
			if err := e.encode(ctx, buildSceneClipArgs(e.cfg, scene.Image, durations[idx], clip)); err != nil {
				errs[idx] = fmt.Errorf("pre-render scene %d: %w", idx, err)
				cancel()
				return
			}
			clips[idx] = clip
		}(i, scene)
	}
	wg.Wait()

	// Prefer the scene failure over the cancellations it caused.
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil || errors.Is(firstErr, context.Canceled) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return clips, nil
}

func (e *Engine) verifySync(ctx context.Context, videoPath string, audioDuration float64) error {
	probed, err := e.probe(ctx, e.cfg.FFprobeBinary, videoPath)
	if err != nil {
		return fmt.Errorf("probe output: %w", err)
	}
	videoDuration := probed.DurationSeconds()
	tolerance := frameInterval(e.cfg.FPS)
	drift := math.Abs(videoDuration - audioDuration)
	if math.IsNaN(videoDuration) || drift >= tolerance {
		return fmt.Errorf("render: output drifts %.4fs from narration, tolerance %.4fs", drift, tolerance)
	}
	return nil
}

func frameInterval(fps int) float64 {
	if fps <= 0 {
		fps = 30
	}
	return 1.0 / float64(fps)
}

// reconcileDurations stretches the per-scene hints so they sum to the
// probed narration length. Scenes without a hint share the remainder
// evenly; a hint surplus is scaled down proportionally.
func reconcileDurations(scenes []Scene, total float64) []float64 {
	out := make([]float64, len(scenes))
	hinted := 0.0
	unhinted := 0
	for i, scene := range scenes {
		if scene.Duration > 0 {
			out[i] = scene.Duration
			hinted += scene.Duration
		} else {
			unhinted++
		}
	}

	if unhinted == len(scenes) {
		share := total / float64(len(scenes))
		for i := range out {
			out[i] = share
		}
		return out
	}

	if unhinted > 0 {
		remainder := total - hinted
		fill := remainder / float64(unhinted)
		if fill <= 0 {
			fill = hinted / float64(len(scenes)-unhinted)
		}
		for i := range out {
			if out[i] == 0 {
				out[i] = fill
			}
		}
	}

	sum := 0.0
	for _, d := range out {
		sum += d
	}
	if sum <= 0 {
		share := total / float64(len(scenes))
		for i := range out {
			out[i] = share
		}
		return out
	}
	scale := total / sum
	for i := range out {
		out[i] *= scale
	}
	return out
}

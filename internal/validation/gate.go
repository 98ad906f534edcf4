package validation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/media/ffprobe"
	"vidpipe/internal/services"
)

// DecodeProber proves a file decodes cleanly. *render.Engine satisfies it.
type DecodeProber interface {
	DecodeProbe(ctx context.Context, path string, seconds int) error
}

// ProbeFunc inspects a media file. Tests inject canned results.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Option configures the gate.
type Option func(*Gate)

// WithProber injects a custom media prober (primarily for tests).
func WithProber(probe ProbeFunc) Option {
	return func(g *Gate) {
		if probe != nil {
			g.probe = probe
		}
	}
}

// Gate validates rendered files against the configured floors.
type Gate struct {
	cfg           config.Validation
	ffprobeBinary string
	decoder       DecodeProber
	probe         ProbeFunc
	logger        *slog.Logger
}

// New constructs a validation gate. The decoder is required; the gate
// refuses to pass files it cannot decode-probe.
func New(cfg config.Validation, ffprobeBinary string, decoder DecodeProber, logger *slog.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	gate := &Gate{
		cfg:           cfg,
		ffprobeBinary: ffprobeBinary,
		decoder:       decoder,
		probe:         ffprobe.Inspect,
		logger:        logging.WithComponent(logger, "validation"),
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate
}

// Validate checks path against the metadata floors and then decode-probes
// it. Every failure is marked ErrValidationFailed so callers fail the job
// without a retry.
func (g *Gate) Validate(ctx context.Context, path string) error {
	result, err := g.probe(ctx, g.ffprobeBinary, path)
	if err != nil {
		return fmt.Errorf("%w: probe: %v", services.ErrValidationFailed, err)
	}

	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration < g.cfg.MinDurationSeconds {
		return fmt.Errorf("%w: duration %.2fs below floor %.2fs", services.ErrValidationFailed, duration, g.cfg.MinDurationSeconds)
	}

	size := result.SizeBytes()
	if size == 0 {
		if info, statErr := os.Stat(path); statErr == nil {
			size = info.Size()
		}
	}
	if size < g.cfg.MinSizeBytes {
		return fmt.Errorf("%w: size %d bytes below floor %d", services.ErrValidationFailed, size, g.cfg.MinSizeBytes)
	}

	if result.VideoStreamCount() < 1 {
		return fmt.Errorf("%w: no video stream", services.ErrValidationFailed)
	}
	if result.AudioStreamCount() < 1 {
		return fmt.Errorf("%w: no audio stream", services.ErrValidationFailed)
	}

	width, height := result.VideoDimensions()
	if width < g.cfg.MinWidth || height < g.cfg.MinHeight {
		return fmt.Errorf("%w: resolution %dx%d below floor %dx%d", services.ErrValidationFailed, width, height, g.cfg.MinWidth, g.cfg.MinHeight)
	}

	if err := g.decoder.DecodeProbe(ctx, path, g.cfg.DecodeProbeSeconds); err != nil {
		return fmt.Errorf("%w: decode probe: %v", services.ErrValidationFailed, err)
	}

	g.logger.Info("validation passed",
		logging.String("path", path),
		logging.String("duration_seconds", fmt.Sprintf("%.2f", duration)),
		logging.Int64("size_bytes", size),
	)
	return nil
}

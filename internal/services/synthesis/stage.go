package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/services"
	"vidpipe/internal/textutil"
)

// Result reports what one synthesis run produced.
type Result struct {
	AudioPath    string
	Chunks       int
	MarkedChunks int
	Characters   int
}

// Stage drives chunking, pacing markup, and sequential submission.
type Stage struct {
	cfg    config.Synthesis
	client ProviderClient
	logger *slog.Logger
	retry  services.RetryPolicy
}

// NewStage constructs the synthesis stage around a provider client.
func NewStage(cfg config.Synthesis, client ProviderClient, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "synthesis")
	return &Stage{
		cfg:    cfg,
		client: client,
		logger: logger,
		retry:  services.RetryPolicy{Operation: "synthesize chunk", Logger: logger},
	}
}

// Synthesize narrates script into audioPath. Chunks are submitted one at
// a time in script order; the provider's audio bytes are appended to the
// file as they arrive, so a failure leaves nothing usable and aborts with
// the failing chunk's position.
func (s *Stage) Synthesize(ctx context.Context, script, audioPath string) (Result, error) {
	if strings.TrimSpace(script) == "" {
		return Result{}, fmt.Errorf("%w: script is empty", services.ErrValidationFailed)
	}

	limit := s.cfg.ChunkByteLimit
	if limit <= 0 {
		limit = 2800
	}
	sentences := textutil.SplitSentences(script)
	chunks := textutil.PackChunks(sentences, limit)

	out, err := os.OpenFile(audioPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("create narration file: %w", err)
	}
	defer out.Close()

	result := Result{
		AudioPath:  audioPath,
		Chunks:     len(chunks),
		Characters: utf8.RuneCountInString(script),
	}

	for i, chunk := range chunks {
		text, marked := MarkupChunk(chunk)
		if ceiling := s.cfg.ChunkByteCeiling; marked && ceiling > 0 && len(text) > ceiling {
			// Markup expansion blew the headroom; plain narration beats
			// a rejected request.
			s.logger.Warn("dropping pacing markup for oversized chunk",
				logging.Int("chunk", i+1),
				logging.Int("marked_bytes", len(text)),
				logging.Int("ceiling", ceiling),
			)
			text, marked = textutil.JoinChunk(chunk), false
		}
		if marked {
			result.MarkedChunks++
		}

		req := Request{
			Text:  text,
			Voice: s.cfg.Voice,
			Rate:  s.cfg.SpeakingRate,
			Pitch: s.cfg.Pitch,
		}
		var audio []byte
		err := services.RetryTransient(ctx, s.retry, func(ctx context.Context) error {
			var submitErr error
			audio, submitErr = s.client.Synthesize(ctx, req)
			return submitErr
		})
		if err != nil {
			return Result{}, fmt.Errorf("synthesize chunk %d of %d: %w", i+1, len(chunks), err)
		}
		if _, err := out.Write(audio); err != nil {
			return Result{}, fmt.Errorf("append chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}

	if err := out.Close(); err != nil {
		return Result{}, fmt.Errorf("close narration file: %w", err)
	}

	s.logger.Info("narration synthesized",
		logging.String("path", audioPath),
		logging.Int("chunks", result.Chunks),
		logging.Int("marked_chunks", result.MarkedChunks),
		logging.Int("characters", result.Characters),
	)
	return result, nil
}

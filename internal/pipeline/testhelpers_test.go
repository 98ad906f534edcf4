package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"unicode/utf8"

	"vidpipe/internal/config"
	"vidpipe/internal/journal"
	"vidpipe/internal/logging"
	"vidpipe/internal/media/ffprobe"
	"vidpipe/internal/notifications"
	"vidpipe/internal/pipeline"
	"vidpipe/internal/queue"
	"vidpipe/internal/render"
	"vidpipe/internal/services/imagegen"
	"vidpipe/internal/services/publish"
	"vidpipe/internal/services/scriptanalysis"
	"vidpipe/internal/services/synthesis"
	"vidpipe/internal/testsupport"
)

type analyzerFunc func(ctx context.Context, script string) (scriptanalysis.Plan, error)

func (f analyzerFunc) Analyze(ctx context.Context, script string) (scriptanalysis.Plan, error) {
	return f(ctx, script)
}

type synthesizerFunc func(ctx context.Context, script, audioPath string) (synthesis.Result, error)

func (f synthesizerFunc) Synthesize(ctx context.Context, script, audioPath string) (synthesis.Result, error) {
	return f(ctx, script, audioPath)
}

type assetsFunc func(ctx context.Context, scenePrompts []string, thumbnailPrompt, dir string) (imagegen.Result, error)

func (f assetsFunc) Generate(ctx context.Context, scenePrompts []string, thumbnailPrompt, dir string) (imagegen.Result, error) {
	return f(ctx, scenePrompts, thumbnailPrompt, dir)
}

type rendererFunc func(ctx context.Context, plan render.Plan) (string, error)

func (f rendererFunc) Render(ctx context.Context, plan render.Plan) (string, error) {
	return f(ctx, plan)
}

type validatorFunc func(ctx context.Context, path string) error

func (f validatorFunc) Validate(ctx context.Context, path string) error {
	return f(ctx, path)
}

type publisherFunc func(ctx context.Context, req publish.Request) (publish.Result, error)

func (f publisherFunc) Publish(ctx context.Context, req publish.Request) (publish.Result, error) {
	return f(ctx, req)
}

// callLog records which stages ran, in order.
type callLog struct {
	mu    sync.Mutex
	names []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
}

func (c *callLog) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, got := range c.names {
		if got == name {
			n++
		}
	}
	return n
}

func (c *callLog) sequence() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// stubNotifier records published events for assertions.
type stubNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (s *stubNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubNotifier) count(event notifications.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.events {
		if got == event {
			n++
		}
	}
	return n
}

func (s *stubNotifier) lastPayload(event notifications.Event) notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i] == event {
			return s.payloads[i]
		}
	}
	return nil
}

// testPlan is the storyboard the stub analyzer proposes.
func testPlan() scriptanalysis.Plan {
	return scriptanalysis.Plan{
		Title:           "달빛 아래 고백",
		ThumbnailPrompt: "moonlit rooftop, cinematic",
		Scenes: []scriptanalysis.Scene{
			{Prompt: "rain on a dark window", DurationHint: 4},
			{Prompt: "an open door, warm light"},
		},
	}
}

// happyStages wires stub stages that succeed end to end. The stubs write
// real files so every downstream path exists on disk.
func happyStages(calls *callLog) pipeline.Stages {
	return pipeline.Stages{
		Synth: synthesizerFunc(func(ctx context.Context, script, audioPath string) (synthesis.Result, error) {
			calls.add("synthesize")
			if err := os.WriteFile(audioPath, []byte("narration"), 0o644); err != nil {
				return synthesis.Result{}, err
			}
			return synthesis.Result{
				AudioPath:  audioPath,
				Chunks:     1,
				Characters: utf8.RuneCountInString(script),
			}, nil
		}),
		Analyzer: analyzerFunc(func(ctx context.Context, script string) (scriptanalysis.Plan, error) {
			calls.add("analyze")
			return testPlan(), nil
		}),
		Assets: assetsFunc(func(ctx context.Context, scenePrompts []string, thumbnailPrompt, dir string) (imagegen.Result, error) {
			calls.add("assets")
			result := imagegen.Result{ScenePaths: make([]string, 0, len(scenePrompts))}
			for i := range scenePrompts {
				path := filepath.Join(dir, fmt.Sprintf("scene_%02d.png", i+1))
				if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
					return imagegen.Result{}, err
				}
				result.ScenePaths = append(result.ScenePaths, path)
				result.Images++
			}
			if thumbnailPrompt != "" {
				path := filepath.Join(dir, "thumbnail.png")
				if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
					return imagegen.Result{}, err
				}
				result.ThumbnailPath = path
				result.Images++
			}
			return result, nil
		}),
		Renderer: rendererFunc(func(ctx context.Context, plan render.Plan) (string, error) {
			calls.add("render")
			out := filepath.Join(plan.WorkDir, "output.mp4")
			if err := os.WriteFile(out, []byte("video"), 0o644); err != nil {
				return "", err
			}
			return out, nil
		}),
		Validator: validatorFunc(func(ctx context.Context, path string) error {
			calls.add("validate")
			return nil
		}),
		Publisher: publisherFunc(func(ctx context.Context, req publish.Request) (publish.Result, error) {
			calls.add("publish")
			return publish.Result{VideoID: "vid-123", URL: "https://youtube.com/watch?v=vid-123"}, nil
		}),
	}
}

// newOrchestrator builds an orchestrator with a canned narration probe so
// the render budget math never shells out.
func newOrchestrator(t *testing.T, cfg *config.Config, store queue.Store, stages pipeline.Stages, jrnl *journal.Store, notifier notifications.Service, opts ...pipeline.Option) *pipeline.Orchestrator {
	t.Helper()
	base := []pipeline.Option{
		pipeline.WithAudioProber(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
			return ffprobe.Result{Format: ffprobe.Format{Duration: "42.0"}}, nil
		}),
	}
	return pipeline.New(cfg, store, stages, jrnl, notifier, logging.NewNop(), append(base, opts...)...)
}

func fieldSequence(updates []testsupport.CellUpdate) []queue.Field {
	fields := make([]queue.Field, len(updates))
	for i, update := range updates {
		fields[i] = update.Field
	}
	return fields
}

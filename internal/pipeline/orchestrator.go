package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/journal"
	"vidpipe/internal/logging"
	"vidpipe/internal/media/ffprobe"
	"vidpipe/internal/notifications"
	"vidpipe/internal/queue"
	"vidpipe/internal/render"
	"vidpipe/internal/services/imagegen"
	"vidpipe/internal/services/publish"
	"vidpipe/internal/services/scriptanalysis"
	"vidpipe/internal/services/synthesis"
)

// Analyzer extracts the storyboard from a script.
type Analyzer interface {
	Analyze(ctx context.Context, script string) (scriptanalysis.Plan, error)
}

// Synthesizer narrates a script into an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, script, audioPath string) (synthesis.Result, error)
}

// AssetGenerator fetches scene stills and the thumbnail into a directory.
type AssetGenerator interface {
	Generate(ctx context.Context, scenePrompts []string, thumbnailPrompt, dir string) (imagegen.Result, error)
}

// Renderer composes narration and stills into the final video file.
type Renderer interface {
	Render(ctx context.Context, plan render.Plan) (string, error)
}

// Validator gates rendered output before it may be published.
type Validator interface {
	Validate(ctx context.Context, path string) error
}

// Publisher uploads the video and waits out platform processing.
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (publish.Result, error)
}

// Stages bundles the pipeline's stage implementations.
type Stages struct {
	Analyzer  Analyzer
	Synth     Synthesizer
	Assets    AssetGenerator
	Renderer  Renderer
	Validator Validator
	Publisher Publisher
}

// ProbeFunc inspects a media file. The orchestrator probes the narration
// once to scale the render budget with the audio length.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithClock injects a time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAudioProber injects the narration prober (primarily for tests).
func WithAudioProber(probe ProbeFunc) Option {
	return func(o *Orchestrator) {
		if probe != nil {
			o.probe = probe
		}
	}
}

// Orchestrator drives queue rows through the stage sequence, one cycle at
// a time.
type Orchestrator struct {
	cfg      *config.Config
	store    queue.Store
	stages   Stages
	journal  *journal.Store
	notifier notifications.Service
	logger   *slog.Logger

	probe ProbeFunc
	now   func() time.Time

	// cycleMu serializes cycles across the poll loop and manual triggers.
	// storeDown is only touched under it; the stall alert fires on the
	// first failed read, not on every poll of an outage.
	cycleMu   sync.Mutex
	storeDown bool

	mu         sync.Mutex
	state      State
	activeRow  int
	lastResult *CycleResult
}

// New constructs an orchestrator. The journal may be nil; journaling
// failures never block the pipeline. A nil notifier degrades to a noop.
func New(cfg *config.Config, store queue.Store, stages Stages, jrnl *journal.Store, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(config.Notifications{})
	}
	o := &Orchestrator{
		cfg:      cfg,
		store:    store,
		stages:   stages,
		journal:  jrnl,
		notifier: notifier,
		logger:   logging.WithComponent(logger, "pipeline"),
		probe:    ffprobe.Inspect,
		now:      time.Now,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Snapshot reports the orchestrator's current position and last outcome.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{State: o.state, ActiveRow: o.activeRow}
	if o.lastResult != nil {
		copied := *o.lastResult
		snap.LastResult = &copied
	}
	return snap
}

func (o *Orchestrator) setState(state State, row int) {
	o.mu.Lock()
	o.state = state
	o.activeRow = row
	o.mu.Unlock()
}

func (o *Orchestrator) finish(result CycleResult) {
	o.mu.Lock()
	o.lastResult = &result
	o.state = StateIdle
	o.activeRow = 0
	o.mu.Unlock()
}

func (o *Orchestrator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		o.logger.Warn("notification failed",
			logging.Error(err),
			logging.String("event", string(event)),
		)
	}
}

package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"

	"vidpipe/internal/config"
	"vidpipe/internal/daemon"
	"vidpipe/internal/ipc"
	"vidpipe/internal/journal"
	"vidpipe/internal/logging"
	"vidpipe/internal/notifications"
	"vidpipe/internal/pipeline"
	"vidpipe/internal/queue"
	"vidpipe/internal/render"
	"vidpipe/internal/services/imagegen"
	"vidpipe/internal/services/publish"
	"vidpipe/internal/services/scriptanalysis"
	"vidpipe/internal/services/synthesis"
	"vidpipe/internal/validation"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel  string
	LogFormat string
}

// Run starts the vidpipe daemon runtime loop. It returns when a signal
// arrives or a stop request comes in over the control socket.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(stateDir(cfg), "vidpipe.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.NewSheetStore(signalCtx, cfg.Sheet, logger)
	if err != nil {
		logger.Error("open sheet store", logging.Error(err))
		return fmt.Errorf("open sheet store: %w", err)
	}

	jrnl, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		logger.Error("open journal", logging.Error(err))
		return fmt.Errorf("open journal: %w", err)
	}

	notifier := notifications.NewService(cfg.Notifications)
	orch := pipeline.New(cfg, store, buildStages(cfg, logger), jrnl, notifier, logger)

	d, err := daemon.New(cfg, store, orch, jrnl, logger)
	if err != nil {
		_ = jrnl.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, SocketPath(cfg), d, logger)
	if err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
		)
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-signalCtx.Done():
		logger.Info("vidpipe daemon shutting down on signal")
	case <-d.Done():
		logger.Info("vidpipe daemon stopped via control socket")
	}
	return nil
}

// RunOnce executes a single pipeline cycle without the daemon loop. The
// daemon lock is still honored so a cycle never races a running daemon on
// the same machine; a held lock reports as a busy outcome.
func RunOnce(cmdCtx context.Context, cfg *config.Config, opts Options) (pipeline.CycleResult, error) {
	if cfg == nil {
		return pipeline.CycleResult{}, fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return pipeline.CycleResult{}, err
	}

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return pipeline.CycleResult{}, fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(lockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return pipeline.CycleResult{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return pipeline.CycleResult{
			Outcome:      pipeline.OutcomeBusy,
			ErrorMessage: "another vidpipe instance holds the daemon lock",
		}, nil
	}
	defer func() { _ = lock.Unlock() }()

	store, err := queue.NewSheetStore(signalCtx, cfg.Sheet, logger)
	if err != nil {
		return pipeline.CycleResult{
			Outcome:      pipeline.OutcomeStoreUnavailable,
			ErrorMessage: err.Error(),
		}, fmt.Errorf("open sheet store: %w", err)
	}

	jrnl, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		return pipeline.CycleResult{}, fmt.Errorf("open journal: %w", err)
	}
	defer jrnl.Close()

	notifier := notifications.NewService(cfg.Notifications)
	orch := pipeline.New(cfg, store, buildStages(cfg, logger), jrnl, notifier, logger)
	return orch.RunCycle(signalCtx)
}

// SocketPath resolves the control socket location for a configuration.
func SocketPath(cfg *config.Config) string {
	if socket := strings.TrimSpace(cfg.Daemon.SocketPath); socket != "" {
		return socket
	}
	return filepath.Join(stateDir(cfg), "vidpipe.sock")
}

// buildStages wires the production stage implementations. The render
// engine doubles as the validation gate's decode prober so both run the
// same ffmpeg binary.
func buildStages(cfg *config.Config, logger *slog.Logger) pipeline.Stages {
	renderer := render.New(cfg.Render, logger)
	return pipeline.Stages{
		Analyzer:  scriptanalysis.NewClient(cfg.ScriptAnalysis, logger),
		Synth:     synthesis.NewStage(cfg.Synthesis, synthesis.NewClient(cfg.Synthesis), logger),
		Assets:    imagegen.NewClient(cfg.ImageGen, logger),
		Renderer:  renderer,
		Validator: validation.New(cfg.Validation, cfg.Render.FFprobeBinary, renderer, logger),
		Publisher: publish.NewClient(cfg.Publish, logger),
	}
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	format := strings.TrimSpace(opts.LogFormat)
	if format == "" {
		format = cfg.Logging.Format
	}
	return logging.NewFromValues(level, format, cfg.Paths.LogDir)
}

// stateDir is where the pid, lock, and socket files live by default.
func stateDir(cfg *config.Config) string {
	if lock := strings.TrimSpace(cfg.Daemon.LockPath); lock != "" {
		return filepath.Dir(lock)
	}
	return cfg.Paths.LogDir
}

func lockPath(cfg *config.Config) string {
	if lock := strings.TrimSpace(cfg.Daemon.LockPath); lock != "" {
		return lock
	}
	return filepath.Join(cfg.Paths.LogDir, "vidpipe.lock")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

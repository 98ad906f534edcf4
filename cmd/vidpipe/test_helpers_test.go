package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidpipe/internal/config"
	"vidpipe/internal/daemon"
	"vidpipe/internal/ipc"
	"vidpipe/internal/journal"
	"vidpipe/internal/logging"
	"vidpipe/internal/pipeline"
	"vidpipe/internal/queue"
	"vidpipe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *testsupport.FakeStore
	jrnl       *journal.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
}

// setupCLITestEnv runs a daemon with an IPC server in-process so commands
// can be exercised end to end over the real socket. The fake store carries
// two terminal rows; with no waiting row a stray poll cycle is a no-op.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PollInterval = 3600
	cfg.Workflow.ReclaimTimeout = 7200
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.NewFakeStore(
		queue.Job{
			Row:           2,
			Status:        queue.StatusDone,
			Script:        testsupport.SampleScript(),
			TitleOverride: "밤의 약속",
			ResultURL:     "https://youtube.com/watch?v=done-1",
		},
		queue.Job{
			Row:          3,
			Status:       queue.StatusFailed,
			Script:       "짧은 대본",
			ErrorMessage: "render: ffmpeg exited 1",
		},
	)
	jrnl := testsupport.MustOpenJournal(t, cfg)

	logger := logging.NewNop()
	orch := pipeline.New(cfg, store, pipeline.Stages{}, jrnl, nil, logger)
	d, err := daemon.New(cfg, store, orch, jrnl, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.Daemon.SocketPath, d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		jrnl:       jrnl,
		daemon:     d,
		server:     srv,
		socketPath: cfg.Daemon.SocketPath,
		configPath: configPath,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

// seedCycle records one finished cycle in the journal.
func seedCycle(t *testing.T, jrnl *journal.Store, cycleID, outcome string, jobRow int64, resultURL, errMsg string) {
	t.Helper()
	ctx := context.Background()
	rowID, err := jrnl.BeginCycle(ctx, cycleID)
	if err != nil {
		t.Fatalf("begin cycle: %v", err)
	}
	if err := jrnl.FinishCycle(ctx, rowID, outcome, jobRow, resultURL, errMsg); err != nil {
		t.Fatalf("finish cycle: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := make([]string, 0, 4)
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
work_dir = %q
log_dir = %q
journal_path = %q

[workflow]
poll_interval = %d
reclaim_timeout = %d

[sheet]
spreadsheet_id = %q
credentials_file = %q

[daemon]
api_bind = %q
socket_path = %q
lock_path = %q

[synthesis]
endpoint = "https://tts.example/v1/speech"
`,
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.Paths.JournalPath,
		cfg.Workflow.PollInterval,
		cfg.Workflow.ReclaimTimeout,
		cfg.Sheet.SpreadsheetID,
		cfg.Sheet.CredentialsFile,
		cfg.Daemon.APIBind,
		cfg.Daemon.SocketPath,
		cfg.Daemon.LockPath,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

package main

import (
	"path/filepath"
	"testing"

	"vidpipe/internal/config"
	"vidpipe/internal/journal"
	"vidpipe/internal/testsupport"
)

// offlineConfig prepares a config file with no daemon behind it.
func offlineConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return cfg, configPath
}

func TestStartAlreadyRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestStopWhenNotRunning(t *testing.T) {
	cfg, configPath := offlineConfig(t)

	out, _, err := runCLI(t, []string{"stop"}, cfg.Daemon.SocketPath, configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestStatusRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "== Queue ==")
	requireContains(t, out, "Done")
	requireContains(t, out, "Failed")
}

func TestStatusOffline(t *testing.T) {
	cfg, configPath := offlineConfig(t)

	jrnl, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	seedCycle(t, jrnl, "cycle-7", "completed", 7, "https://youtube.com/watch?v=done-7", "")
	if err := jrnl.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, cfg.Daemon.SocketPath, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Completed row 7")
	requireContains(t, out, "Queue is empty")
}

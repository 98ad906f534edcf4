package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidpipe/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for blank command: %#v", results[2])
	}
}

func TestCheckCredentials(t *testing.T) {
	base := t.TempDir()
	credPath := filepath.Join(base, "credentials.json")
	if err := os.WriteFile(credPath, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	cfgVal := config.Default()
	cfgVal.Sheet.CredentialsFile = credPath
	cfgVal.Publish.ClientID = "client"
	cfgVal.Publish.ClientSecret = "secret"
	cfgVal.Publish.RefreshToken = "token"

	results := CheckCredentials(&cfgVal)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, status := range results {
		if !status.Available {
			t.Fatalf("expected %s to pass, got %#v", status.Name, status)
		}
	}

	cfgVal.Sheet.CredentialsFile = filepath.Join(base, "missing.json")
	cfgVal.Publish.RefreshToken = ""
	results = CheckCredentials(&cfgVal)
	if results[0].Available {
		t.Fatalf("expected missing credentials file to fail: %#v", results[0])
	}
	if results[1].Available {
		t.Fatalf("expected incomplete oauth config to fail: %#v", results[1])
	}
	if !strings.Contains(results[1].Detail, "refresh_token") {
		t.Fatalf("detail should name the missing field: %q", results[1].Detail)
	}
}

func TestCheckWorkspace(t *testing.T) {
	base := t.TempDir()

	status := checkWorkspace(base, 1)
	if !status.Available {
		t.Fatalf("expected workspace to pass, got %#v", status)
	}
	if status.Detail == "" {
		t.Fatal("expected free-space detail")
	}

	// A directory the first run has not created yet resolves against its
	// nearest existing parent.
	status = checkWorkspace(filepath.Join(base, "not", "yet", "created"), 1)
	if !status.Available {
		t.Fatalf("expected uncreated workspace to pass via parent, got %#v", status)
	}

	status = checkWorkspace(base, 1<<62)
	if status.Available {
		t.Fatal("expected an absurd floor to fail")
	}
	if !strings.Contains(status.Detail, "need at least") {
		t.Fatalf("detail should mention the floor: %q", status.Detail)
	}

	status = checkWorkspace("", 1)
	if status.Available || status.Detail != "work_dir not configured" {
		t.Fatalf("unexpected status for blank dir: %#v", status)
	}
}

package imagegen

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/services"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client := NewClient(config.ImageGen{
		Endpoint: endpoint,
		Width:    1920,
		Height:   1080,
		MinBytes: 16,
	}, nil)
	client.retry.BaseDelay = time.Millisecond
	return client
}

func imageBytes() []byte {
	return bytes.Repeat([]byte{0x89, 0x50, 0x4e, 0x47}, 16)
}

func TestGenerateWritesSceneFilesInOrder(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if got := r.URL.Query().Get("nologo"); got != "true" {
			t.Fatalf("expected nologo=true, got %q", got)
		}
		if got := r.URL.Query().Get("width"); got != "1920" {
			t.Fatalf("expected width=1920, got %q", got)
		}
		_, _ = w.Write(imageBytes())
	}))
	defer server.Close()

	dir := t.TempDir()
	client := newTestClient(t, server.URL)
	result, err := client.Generate(context.Background(), []string{"storm at sea", "quiet harbor"}, "lighthouse at dawn", dir)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "scene_01.png"),
		filepath.Join(dir, "scene_02.png"),
	}
	if len(result.ScenePaths) != 2 || result.ScenePaths[0] != want[0] || result.ScenePaths[1] != want[1] {
		t.Fatalf("unexpected scene paths %v", result.ScenePaths)
	}
	if result.ThumbnailPath != filepath.Join(dir, "thumbnail.png") {
		t.Fatalf("unexpected thumbnail path %q", result.ThumbnailPath)
	}
	if result.Images != 3 {
		t.Fatalf("expected 3 images, got %d", result.Images)
	}
	for _, path := range append(want, result.ThumbnailPath) {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !bytes.Equal(data, imageBytes()) {
			t.Fatalf("unexpected contents in %s", path)
		}
	}
	if len(paths) != 3 || !strings.Contains(paths[0], "storm at sea") || !strings.Contains(paths[2], "lighthouse at dawn") {
		t.Fatalf("unexpected request order %v", paths)
	}
}

func TestGenerateSkipsThumbnailWhenPromptEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(imageBytes())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Generate(context.Background(), []string{"one scene"}, "  ", t.TempDir())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.ThumbnailPath != "" || result.Images != 1 {
		t.Fatalf("expected scene image only, got %+v", result)
	}
}

func TestGenerateAbortsOnSceneFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "forbidden") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write(imageBytes())
	}))
	defer server.Close()

	dir := t.TempDir()
	client := newTestClient(t, server.URL)
	_, err := client.Generate(context.Background(), []string{"fine", "forbidden prompt", "never reached"}, "", dir)
	if err == nil {
		t.Fatal("expected scene failure")
	}
	if !strings.Contains(err.Error(), "scene 2 of 3") {
		t.Fatalf("expected failing index in error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "scene_01.png")); statErr != nil {
		t.Fatalf("first scene should be on disk: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "scene_03.png")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("third scene must not be fetched after a failure")
	}
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(imageBytes())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	path := filepath.Join(t.TempDir(), "scene_01.png")
	if err := client.Fetch(context.Background(), "retry me", 1, path); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, saw %d calls", calls.Load())
	}
}

func TestFetchTinyResponseIsRejection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("<html>err</html>"[:10]))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Fetch(context.Background(), "tiny", 1, filepath.Join(t.TempDir(), "out.png"))
	if !errors.Is(err, services.ErrProviderRejected) {
		t.Fatalf("expected provider rejection, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("rejections must not be retried, saw %d calls", calls.Load())
	}
}

func TestFetchRateLimitIsTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Fetch(context.Background(), "limited", 1, filepath.Join(t.TempDir(), "out.png"))
	if !errors.Is(err, services.ErrTransientBackend) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if calls.Load() != int32(services.DefaultRetryAttempts) {
		t.Fatalf("expected full retry budget, saw %d calls", calls.Load())
	}
}

func TestGenerateRequiresEndpoint(t *testing.T) {
	client := NewClient(config.ImageGen{}, nil)
	_, err := client.Generate(context.Background(), []string{"p"}, "", t.TempDir())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

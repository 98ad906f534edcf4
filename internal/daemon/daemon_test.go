package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidpipe/internal/api"
	"vidpipe/internal/config"
	"vidpipe/internal/daemon"
	"vidpipe/internal/journal"
	"vidpipe/internal/logging"
	"vidpipe/internal/media/ffprobe"
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

func (f validatorFunc) Validate(ctx context.Context, path string) error { return f(ctx, path) }

type publisherFunc func(ctx context.Context, req publish.Request) (publish.Result, error)

func (f publisherFunc) Publish(ctx context.Context, req publish.Request) (publish.Result, error) {
	return f(ctx, req)
}

func stubStages() pipeline.Stages {
	return pipeline.Stages{
		Synth: synthesizerFunc(func(ctx context.Context, script, audioPath string) (synthesis.Result, error) {
			if err := os.WriteFile(audioPath, []byte("narration"), 0o644); err != nil {
				return synthesis.Result{}, err
			}
			return synthesis.Result{AudioPath: audioPath, Chunks: 1, Characters: len(script)}, nil
		}),
		Analyzer: analyzerFunc(func(ctx context.Context, script string) (scriptanalysis.Plan, error) {
			return scriptanalysis.Plan{
				Title:           "밤의 약속",
				ThumbnailPrompt: "city at night",
				Scenes:          []scriptanalysis.Scene{{Prompt: "rain on glass"}},
			}, nil
		}),
		Assets: assetsFunc(func(ctx context.Context, scenePrompts []string, thumbnailPrompt, dir string) (imagegen.Result, error) {
			result := imagegen.Result{}
			for i := range scenePrompts {
				path := filepath.Join(dir, fmt.Sprintf("scene_%02d.png", i+1))
				if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
					return imagegen.Result{}, err
				}
				result.ScenePaths = append(result.ScenePaths, path)
				result.Images++
			}
			path := filepath.Join(dir, "thumbnail.png")
			if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
				return imagegen.Result{}, err
			}
			result.ThumbnailPath = path
			result.Images++
			return result, nil
		}),
		Renderer: rendererFunc(func(ctx context.Context, plan render.Plan) (string, error) {
			out := filepath.Join(plan.WorkDir, "output.mp4")
			if err := os.WriteFile(out, []byte("video"), 0o644); err != nil {
				return "", err
			}
			return out, nil
		}),
		Validator: validatorFunc(func(ctx context.Context, path string) error { return nil }),
		Publisher: publisherFunc(func(ctx context.Context, req publish.Request) (publish.Result, error) {
			return publish.Result{VideoID: "vid-9", URL: "https://youtube.com/watch?v=vid-9"}, nil
		}),
	}
}

func newDaemon(t *testing.T, cfg *config.Config, store queue.Store, jrnl *journal.Store) *daemon.Daemon {
	t.Helper()
	orch := pipeline.New(cfg, store, stubStages(), jrnl, nil, logging.NewNop(),
		pipeline.WithAudioProber(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
			return ffprobe.Result{Format: ffprobe.Format{Duration: "30.0"}}, nil
		}),
	)
	d, err := daemon.New(cfg, store, orch, jrnl, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func quietConfig(t *testing.T) *config.Config {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PollInterval = 3600
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}

func TestDaemonLifecycle(t *testing.T) {
	cfg := quietConfig(t)
	store := testsupport.NewFakeStore(queue.Job{
		Row:    2,
		Status: queue.StatusWaiting,
		Script: testsupport.SampleScript(),
	})
	jrnl := testsupport.MustOpenJournal(t, cfg)

	d := newDaemon(t, cfg, store, jrnl)
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	second := newDaemon(t, cfg, store, nil)
	if err := second.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		second.Stop()
		t.Fatalf("expected lock conflict, got %v", err)
	}

	result, err := d.TriggerCycle(ctx)
	if err != nil {
		t.Fatalf("TriggerCycle: %v", err)
	}
	if result.Outcome != pipeline.OutcomeCompleted {
		t.Fatalf("expected completed cycle, got %s (%s)", result.Outcome, result.ErrorMessage)
	}
	job, ok := store.Job(2)
	if !ok || job.Status != queue.StatusDone {
		t.Fatalf("expected row 2 done, got %+v", job)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.QueueStats["done"] != 1 {
		t.Fatalf("unexpected queue stats: %+v", status.QueueStats)
	}
	if status.QueueDepth != 0 {
		t.Fatalf("expected empty waiting depth, got %d", status.QueueDepth)
	}
	if status.LastCycle == nil || status.LastCycle.Outcome != string(pipeline.OutcomeCompleted) {
		t.Fatalf("expected journaled completed cycle, got %+v", status.LastCycle)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}

	// The lock must be free again after Stop.
	if err := second.Start(ctx); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	second.Stop()
}

func TestDaemonServesHTTP(t *testing.T) {
	cfg := quietConfig(t)
	store := testsupport.NewFakeStore(queue.Job{
		Row:    2,
		Status: queue.StatusWaiting,
		Script: testsupport.SampleScript(),
	})
	jrnl := testsupport.MustOpenJournal(t, cfg)

	d := newDaemon(t, cfg, store, jrnl)
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("expected api server address")
	}
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if !status.Running || status.QueueDepth != 1 {
		t.Fatalf("unexpected status payload: %+v", status)
	}

	resp, err = client.Post("http://"+addr+"/api/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/trigger: %v", err)
	}
	var trigger api.TriggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&trigger); err != nil {
		t.Fatalf("decode trigger: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || trigger.Outcome != string(pipeline.OutcomeCompleted) {
		t.Fatalf("unexpected trigger response: code=%d outcome=%s", resp.StatusCode, trigger.Outcome)
	}

	// A second trigger finds nothing waiting.
	resp, err = client.Post("http://"+addr+"/api/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/trigger: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&trigger); err != nil {
		t.Fatalf("decode trigger: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || trigger.Outcome != string(pipeline.OutcomeNothingToDo) {
		t.Fatalf("expected nothing_to_do, got code=%d outcome=%s", resp.StatusCode, trigger.Outcome)
	}

	resp, err = client.Get("http://" + addr + "/api/queue?history=10")
	if err != nil {
		t.Fatalf("GET /api/queue: %v", err)
	}
	var list api.QueueListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	resp.Body.Close()
	if len(list.Rows) != 1 || list.Rows[0].Status != "done" {
		t.Fatalf("unexpected queue rows: %+v", list.Rows)
	}
	if len(list.History) != 2 {
		t.Fatalf("expected 2 journal cycles, got %d", len(list.History))
	}

	d.Stop()
}

func TestDaemonTriggerStoreUnavailable(t *testing.T) {
	cfg := quietConfig(t)
	store := testsupport.NewFakeStore()
	store.ReadErr = fmt.Errorf("sheets: backend unavailable")
	jrnl := testsupport.MustOpenJournal(t, cfg)

	d := newDaemon(t, cfg, store, jrnl)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	result, err := d.TriggerCycle(ctx)
	if result.Outcome != pipeline.OutcomeStoreUnavailable {
		t.Fatalf("expected store_unavailable, got %s", result.Outcome)
	}
	if err == nil {
		t.Fatal("expected cycle error for store outage")
	}

	status := d.Status(ctx)
	if status.QueueError == "" {
		t.Fatal("expected queue error in status")
	}
	if status.QueueStats != nil {
		t.Fatalf("expected no queue stats during outage, got %+v", status.QueueStats)
	}
}

func TestDaemonTriggerAfterStop(t *testing.T) {
	cfg := quietConfig(t)
	store := testsupport.NewFakeStore()
	d := newDaemon(t, cfg, store, nil)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	d.Stop()

	if _, err := d.TriggerCycle(ctx); err == nil {
		t.Fatal("expected trigger to fail after stop")
	}
}

func TestDaemonQueueSnapshotDuringOutage(t *testing.T) {
	cfg := quietConfig(t)
	store := testsupport.NewFakeStore()
	store.ReadErr = fmt.Errorf("sheets: backend unavailable")
	jrnl := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	rowID, err := jrnl.BeginCycle(ctx, "cycle-history")
	if err != nil {
		t.Fatalf("BeginCycle: %v", err)
	}
	if err := jrnl.FinishCycle(ctx, rowID, string(pipeline.OutcomeCompleted), 2, "https://youtube.com/watch?v=old", ""); err != nil {
		t.Fatalf("FinishCycle: %v", err)
	}

	d := newDaemon(t, cfg, store, jrnl)
	t.Cleanup(func() { _ = d.Close() })

	jobs, cycles, queueErr, err := d.QueueSnapshot(ctx, 5)
	if err != nil {
		t.Fatalf("QueueSnapshot: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs during outage, got %d", len(jobs))
	}
	if queueErr == "" {
		t.Fatal("expected queue error during outage")
	}
	if len(cycles) != 1 || cycles[0].Outcome != string(pipeline.OutcomeCompleted) {
		t.Fatalf("expected journal history despite outage, got %+v", cycles)
	}
}

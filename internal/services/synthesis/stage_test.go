package synthesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/services"
)

type fakeClient struct {
	texts   []string
	failAt  int // 1-based submission to fail; 0 disables
	failErr error
	flaky   int // submissions that fail transiently before succeeding
}

func (f *fakeClient) Synthesize(_ context.Context, req Request) ([]byte, error) {
	call := len(f.texts) + 1
	if f.flaky > 0 {
		f.flaky--
		return nil, fmt.Errorf("blip: %w", services.ErrTransientBackend)
	}
	if f.failAt > 0 && call == f.failAt {
		return nil, f.failErr
	}
	f.texts = append(f.texts, req.Text)
	return []byte(fmt.Sprintf("[%02d]", call)), nil
}

func stageConfig() config.Synthesis {
	return config.Synthesis{
		Voice:            "ko-KR-wavenet-a",
		SpeakingRate:     1.0,
		ChunkByteLimit:   40,
		ChunkByteCeiling: 120,
	}
}

func newTestStage(cfg config.Synthesis, client ProviderClient) *Stage {
	stage := NewStage(cfg, client, nil)
	stage.retry.BaseDelay = time.Millisecond
	return stage
}

func TestSynthesizePreservesOrder(t *testing.T) {
	script := "하나 둘 셋 넷 다섯 여섯. 일곱 여덟 아홉 열 한번 더. 마지막 문장은 여기서 끝난다."
	client := &fakeClient{}
	stage := newTestStage(stageConfig(), client)
	audioPath := filepath.Join(t.TempDir(), "narration.mp3")

	result, err := stage.Synthesize(context.Background(), script, audioPath)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.Chunks < 2 {
		t.Fatalf("expected the 40-byte limit to split the script, got %d chunks", result.Chunks)
	}
	if result.Chunks != len(client.texts) {
		t.Fatalf("chunks %d != submissions %d", result.Chunks, len(client.texts))
	}
	if strings.Join(client.texts, "") != script {
		t.Fatalf("submitted text diverged from script:\n%q", client.texts)
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		t.Fatalf("read narration: %v", err)
	}
	var want strings.Builder
	for i := 1; i <= result.Chunks; i++ {
		fmt.Fprintf(&want, "[%02d]", i)
	}
	if string(audio) != want.String() {
		t.Fatalf("audio out of order: %q", audio)
	}
}

func TestSynthesizeAbortsWithFailingIndex(t *testing.T) {
	script := "하나 둘 셋 넷 다섯 여섯. 일곱 여덟 아홉 열 한번 더. 마지막 문장은 여기서 끝난다."
	client := &fakeClient{
		failAt:  2,
		failErr: fmt.Errorf("%w: voice unavailable", services.ErrProviderRejected),
	}
	stage := newTestStage(stageConfig(), client)

	_, err := stage.Synthesize(context.Background(), script, filepath.Join(t.TempDir(), "narration.mp3"))
	if err == nil {
		t.Fatal("expected stage failure")
	}
	if !strings.Contains(err.Error(), "chunk 2 of") {
		t.Fatalf("expected failing index in error, got %v", err)
	}
	if !errors.Is(err, services.ErrProviderRejected) {
		t.Fatalf("expected rejection marker, got %v", err)
	}
	if len(client.texts) != 1 {
		t.Fatalf("submission must stop at the failure, got %d successes", len(client.texts))
	}
}

func TestSynthesizeRetriesTransientBlip(t *testing.T) {
	script := "짧은 대본이다."
	client := &fakeClient{flaky: 1}
	stage := newTestStage(stageConfig(), client)

	result, err := stage.Synthesize(context.Background(), script, filepath.Join(t.TempDir(), "narration.mp3"))
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.Chunks != 1 || len(client.texts) != 1 {
		t.Fatalf("expected retried single chunk, got %#v", result)
	}
}

func TestSynthesizeCountsMarkedChunks(t *testing.T) {
	script := "어머니의 죽음 앞에서 모두가 울었다."
	cfg := stageConfig()
	cfg.ChunkByteLimit = 2800
	cfg.ChunkByteCeiling = 3000
	client := &fakeClient{}
	stage := newTestStage(cfg, client)

	result, err := stage.Synthesize(context.Background(), script, filepath.Join(t.TempDir(), "narration.mp3"))
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.MarkedChunks != 1 {
		t.Fatalf("expected one marked chunk, got %d", result.MarkedChunks)
	}
	if !strings.HasPrefix(client.texts[0], "<speak>") {
		t.Fatalf("expected SSML submission, got %q", client.texts[0])
	}
}

func TestSynthesizeDropsMarkupOverCeiling(t *testing.T) {
	script := "공포가 밀려왔다."
	cfg := stageConfig()
	cfg.ChunkByteLimit = 2800
	cfg.ChunkByteCeiling = 30 // markup cannot fit, plain text can
	client := &fakeClient{}
	stage := newTestStage(cfg, client)

	result, err := stage.Synthesize(context.Background(), script, filepath.Join(t.TempDir(), "narration.mp3"))
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.MarkedChunks != 0 {
		t.Fatalf("expected markup dropped, got %d marked chunks", result.MarkedChunks)
	}
	if strings.HasPrefix(client.texts[0], "<speak>") {
		t.Fatalf("expected plain submission, got %q", client.texts[0])
	}
}

func TestSynthesizeRejectsEmptyScript(t *testing.T) {
	stage := newTestStage(stageConfig(), &fakeClient{})

	_, err := stage.Synthesize(context.Background(), "   ", filepath.Join(t.TempDir(), "narration.mp3"))
	if !errors.Is(err, services.ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

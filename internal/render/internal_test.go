package render

import (
	"math"
	"strings"
	"testing"

	"vidpipe/internal/config"
)

func TestReconcileDurations(t *testing.T) {
	cases := []struct {
		name   string
		hints  []float64
		total  float64
		want   []float64
		approx bool
	}{
		{
			name:  "no hints split evenly",
			hints: []float64{0, 0, 0, 0},
			total: 10,
			want:  []float64{2.5, 2.5, 2.5, 2.5},
		},
		{
			name:  "hints scaled up to narration",
			hints: []float64{2, 2},
			total: 8,
			want:  []float64{4, 4},
		},
		{
			name:  "unhinted scenes absorb remainder",
			hints: []float64{3, 0},
			total: 9,
			want:  []float64{3, 6},
		},
		{
			name:  "hint surplus scaled down",
			hints: []float64{8, 0},
			total: 6,
			want:  []float64{3, 3},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scenes := make([]Scene, len(tc.hints))
			for i, hint := range tc.hints {
				scenes[i] = Scene{Image: "img.png", Duration: hint}
			}
			got := reconcileDurations(scenes, tc.total)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d durations, want %d", len(got), len(tc.want))
			}
			sum := 0.0
			for i := range got {
				if math.Abs(got[i]-tc.want[i]) > 1e-9 {
					t.Fatalf("duration %d = %v, want %v", i, got[i], tc.want[i])
				}
				sum += got[i]
			}
			if math.Abs(sum-tc.total) > 1e-9 {
				t.Fatalf("durations sum to %v, want %v", sum, tc.total)
			}
		})
	}
}

func TestLineRingKeepsTail(t *testing.T) {
	ring := newLineRing(3)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		ring.Append(line)
	}
	tail := ring.Tail()
	if len(tail) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(tail))
	}
	if tail[0] != "c" || tail[1] != "d" || tail[2] != "e" {
		t.Fatalf("unexpected tail: %v", tail)
	}
	if ring.String() != "c\nd\ne" {
		t.Fatalf("unexpected string: %q", ring.String())
	}
}

func TestLineRingPartialFill(t *testing.T) {
	ring := newLineRing(4)
	ring.Append("only")
	tail := ring.Tail()
	if len(tail) != 1 || tail[0] != "only" {
		t.Fatalf("unexpected tail: %v", tail)
	}
}

func TestEscapeConcatPath(t *testing.T) {
	if got := escapeConcatPath("it's.png"); got != `it'\''s.png` {
		t.Fatalf("unexpected escape: %q", got)
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath("/work/job 3/subs:final.srt")
	if strings.Contains(got, "subs:final") {
		t.Fatalf("colon not escaped: %q", got)
	}
	if !strings.Contains(got, `subs\:final`) {
		t.Fatalf("unexpected escape: %q", got)
	}
}

func TestClipFilterSkipsFadeOnShortScenes(t *testing.T) {
	cfg := config.Render{Width: 1280, Height: 720, TransitionDuration: 0.5}
	if filter := clipFilter(cfg, 0.8); strings.Contains(filter, "fade") {
		t.Fatalf("expected no fade for sub-transition scene, got %q", filter)
	}
	if filter := clipFilter(cfg, 5); !strings.Contains(filter, "fade=t=in") || !strings.Contains(filter, "fade=t=out") {
		t.Fatalf("expected fades, got %q", filter)
	}
}

func TestBuildDecodeProbeArgs(t *testing.T) {
	args := buildDecodeProbeArgs("/tmp/render.mp4", 8)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-t 8") {
		t.Fatalf("expected leading-seconds clamp, got %q", joined)
	}
	if !strings.HasSuffix(joined, "-f null -") {
		t.Fatalf("expected null sink, got %q", joined)
	}
}

package synthesis_test

import (
	"strings"
	"testing"

	"vidpipe/internal/services/synthesis"
)

func TestMarkupChunkPlainWhenNoKeywords(t *testing.T) {
	chunk := []string{"오늘 날씨가 좋다. ", "산책을 했다."}
	text, marked := synthesis.MarkupChunk(chunk)
	if marked {
		t.Fatal("expected no markup")
	}
	if text != "오늘 날씨가 좋다. 산책을 했다." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestMarkupChunkWrapsMatchedSentences(t *testing.T) {
	chunk := []string{"그는 문을 열었다. ", "어머니의 죽음 소식이었다. ", "밖에는 비가 내렸다."}
	text, marked := synthesis.MarkupChunk(chunk)
	if !marked {
		t.Fatal("expected markup")
	}
	if !strings.HasPrefix(text, "<speak>") || !strings.HasSuffix(text, "</speak>") {
		t.Fatalf("expected speak envelope: %q", text)
	}
	if !strings.Contains(text, `<prosody rate="80%">어머니의 죽음 소식이었다. </prosody>`) {
		t.Fatalf("expected matched sentence slowed: %q", text)
	}
	if strings.Contains(text, "<prosody") && strings.Contains(text, `<prosody rate="80%">그는 문을`) {
		t.Fatalf("unmatched sentence must stay plain: %q", text)
	}
	if !strings.Contains(text, `<break time="300ms"/>`) || !strings.Contains(text, `<break time="200ms"/>`) {
		t.Fatalf("expected breaks around matched sentence: %q", text)
	}
}

func TestMarkupChunkFoldsCase(t *testing.T) {
	_, marked := synthesis.MarkupChunk([]string{"She was AFRAID of the dark."})
	if !marked {
		t.Fatal("expected case-folded keyword match")
	}
}

func TestMarkupChunkEscapesText(t *testing.T) {
	text, marked := synthesis.MarkupChunk([]string{"공포 & <어둠> 속에서."})
	if !marked {
		t.Fatal("expected markup")
	}
	if !strings.Contains(text, "&amp;") || !strings.Contains(text, "&lt;어둠&gt;") {
		t.Fatalf("expected escaped payload: %q", text)
	}
	if strings.Contains(text, "<어둠>") {
		t.Fatalf("raw angle brackets must not survive: %q", text)
	}
}

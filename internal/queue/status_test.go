package queue_test

import (
	"testing"

	"vidpipe/internal/queue"
)

func TestStatusLabelsRoundTrip(t *testing.T) {
	statuses := []queue.Status{
		queue.StatusWaiting,
		queue.StatusProcessing,
		queue.StatusDone,
		queue.StatusFailed,
	}
	for _, status := range statuses {
		parsed, ok := queue.ParseStatus(status.Label())
		if !ok || parsed != status {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", status.Label(), parsed, ok, status)
		}
		parsed, ok = queue.ParseStatus(status.String())
		if !ok || parsed != status {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", status.String(), parsed, ok, status)
		}
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	for _, value := range []string{"", "보류", "pending", "DONE!"} {
		if status, ok := queue.ParseStatus(value); ok {
			t.Errorf("ParseStatus(%q) unexpectedly parsed to %v", value, status)
		}
	}
}

func TestParseStatusTrimsAndFolds(t *testing.T) {
	if status, ok := queue.ParseStatus("  대기 "); !ok || status != queue.StatusWaiting {
		t.Fatalf("expected waiting, got %v %v", status, ok)
	}
	if status, ok := queue.ParseStatus("Waiting"); !ok || status != queue.StatusWaiting {
		t.Fatalf("expected waiting for ASCII alias, got %v %v", status, ok)
	}
}

func TestStatusTerminal(t *testing.T) {
	if queue.StatusWaiting.IsTerminal() || queue.StatusProcessing.IsTerminal() {
		t.Fatal("waiting/processing are not terminal")
	}
	if !queue.StatusDone.IsTerminal() || !queue.StatusFailed.IsTerminal() {
		t.Fatal("done/failed are terminal")
	}
}

package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidpipe/internal/config"
	"vidpipe/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg.Notifications)
	if err := svc.Publish(context.Background(), notifications.EventJobCompleted, notifications.Payload{"row": "3"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "job completed",
			event: notifications.EventJobCompleted,
			payload: notifications.Payload{
				"row":   "7",
				"title": "가을밤의 이야기",
				"url":   "https://youtube.com/watch?v=abc123",
			},
			expectTitle:   "Vidpipe - Job Complete",
			expectMessage: "✅ Published row 7: 가을밤의 이야기\nhttps://youtube.com/watch?v=abc123",
			expectTags:    "vidpipe,job,completed",
		},
		{
			name:  "job completed without url",
			event: notifications.EventJobCompleted,
			payload: notifications.Payload{
				"row":   "2",
				"title": "첫 번째 사연",
			},
			expectTitle:   "Vidpipe - Job Complete",
			expectMessage: "✅ Published row 2: 첫 번째 사연",
			expectTags:    "vidpipe,job,completed",
		},
		{
			name:  "job failed",
			event: notifications.EventJobFailed,
			payload: notifications.Payload{
				"row":   "4",
				"error": "render: output too short",
			},
			expectTitle:    "Vidpipe - Job Failed",
			expectMessage:  "❌ Row 4 failed: render: output too short",
			expectTags:     "vidpipe,job,failed",
			expectPriority: "high",
		},
		{
			name:  "queue stalled",
			event: notifications.EventQueueStalled,
			payload: notifications.Payload{
				"reason":  "sheet unreachable",
				"waiting": "5",
			},
			expectTitle:    "Vidpipe - Queue Stalled",
			expectMessage:  "⚠️ Queue stalled: sheet unreachable\nWaiting rows: 5",
			expectTags:     "vidpipe,queue,stalled",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.JobCompleted = true
			cfg.Notifications.JobFailed = true

			svc := notifications.NewService(cfg.Notifications)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobCompleted = false
	cfg.Notifications.JobFailed = false

	svc := notifications.NewService(cfg.Notifications)
	disabled := []notifications.Event{
		notifications.EventJobCompleted,
		notifications.EventJobFailed,
	}

	for _, event := range disabled {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"row": "1"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("topic locked"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobFailed = true

	svc := notifications.NewService(cfg.Notifications)
	err := svc.Publish(context.Background(), notifications.EventJobFailed, notifications.Payload{"row": "1", "error": "boom"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidpipe/internal/config"
)

const userAgent = "Vidpipe-Go/0.1.0"

// Event identifies a pipeline milestone worth telling a human about.
type Event string

const (
	// EventJobCompleted fires when a queue row reaches its terminal done state.
	EventJobCompleted Event = "job_completed"
	// EventJobFailed fires when a queue row is marked failed.
	EventJobFailed Event = "job_failed"
	// EventQueueStalled fires when the daemon cannot make progress against
	// the queue store. Stall alerts cannot be disabled.
	EventQueueStalled Event = "queue_stalled"
)

// Payload carries the event-specific fields used to format a message.
// Recognized keys: row, title, url, error, reason, waiting.
type Payload map[string]string

func (p Payload) get(key string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p[key])
}

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		onCompleted: cfg.JobCompleted,
		onFailed:    cfg.JobFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	onCompleted bool
	onFailed    bool
}

// Publish formats the event and posts it to the configured topic. Events
// disabled in configuration are dropped without issuing a request.
func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	data, ok := n.format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) format(event Event, fields Payload) (payload, bool) {
	switch event {
	case EventJobCompleted:
		if !n.onCompleted {
			return payload{}, false
		}
		message := fmt.Sprintf("✅ Published row %s: %s", fields.get("row"), fields.get("title"))
		if url := fields.get("url"); url != "" {
			message = fmt.Sprintf("%s\n%s", message, url)
		}
		return payload{
			title:   "Vidpipe - Job Complete",
			message: message,
			tags:    []string{"vidpipe", "job", "completed"},
		}, true
	case EventJobFailed:
		if !n.onFailed {
			return payload{}, false
		}
		reason := fields.get("error")
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "Vidpipe - Job Failed",
			message:  fmt.Sprintf("❌ Row %s failed: %s", fields.get("row"), reason),
			tags:     []string{"vidpipe", "job", "failed"},
			priority: "high",
		}, true
	case EventQueueStalled:
		reason := fields.get("reason")
		if reason == "" {
			reason = "unknown"
		}
		message := fmt.Sprintf("⚠️ Queue stalled: %s", reason)
		if waiting := fields.get("waiting"); waiting != "" {
			message = fmt.Sprintf("%s\nWaiting rows: %s", message, waiting)
		}
		return payload{
			title:    "Vidpipe - Queue Stalled",
			message:  message,
			tags:     []string{"vidpipe", "queue", "stalled"},
			priority: "high",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

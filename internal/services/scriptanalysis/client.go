package scriptanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/services"
)

const (
	jsonResponseType = "json_object"
	defaultTimeout   = 10 * time.Minute
	maxResponseBytes = 1 << 20
)

// Scene is one visual beat of the storyboard.
type Scene struct {
	Prompt       string  `json:"prompt"`
	DurationHint float64 `json:"duration_seconds"`
}

// Plan is the storyboard extracted from a narration script.
type Plan struct {
	Title           string  `json:"title"`
	ThumbnailPrompt string  `json:"thumbnail_prompt"`
	Scenes          []Scene `json:"scenes"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg        config.ScriptAnalysis
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a script analysis client from configuration.
func NewClient(cfg config.ScriptAnalysis, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		cfg: config.ScriptAnalysis{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			RequestTimeout: cfg.RequestTimeout,
			MaxScenes:      cfg.MaxScenes,
			CostPerCall:    cfg.CostPerCall,
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.WithComponent(logger, "scriptanalysis"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatPayload `json:"message"`
		// Some providers return the streaming schema even when stream=false,
		// so tolerate delta as a fallback.
		Delta        chatPayload `json:"delta"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatPayload struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// Analyze sends the script and parses the storyboard out of the reply.
// Unparseable replies are provider rejections: retrying the same script
// against the same model buys nothing.
func (c *Client) Analyze(ctx context.Context, script string) (Plan, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return Plan{}, fmt.Errorf("analyze: %w: script is empty", services.ErrValidationFailed)
	}
	if c.cfg.BaseURL == "" {
		return Plan{}, fmt.Errorf("analyze: %w: base url not configured", services.ErrConfiguration)
	}
	if c.cfg.APIKey == "" {
		return Plan{}, fmt.Errorf("analyze: %w: api key not configured", services.ErrConfiguration)
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: ScenePlanPrompt},
			{Role: "user", Content: script},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Plan{}, fmt.Errorf("analyze: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return Plan{}, fmt.Errorf("analyze: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Plan{}, fmt.Errorf("analyze: %w: %v", services.Classify(err), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Plan{}, fmt.Errorf("analyze: read response: %w: %v", services.ErrTransientBackend, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Plan{}, classifyStatus(resp.StatusCode, body)
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return Plan{}, fmt.Errorf("analyze: %w: decode envelope: %v (%s)", services.ErrProviderRejected, err, payloadSnippet(string(body)))
	}
	if completion.Error != nil {
		return Plan{}, fmt.Errorf("analyze: %w: api error: %s", services.ErrProviderRejected, strings.TrimSpace(completion.Error.Message))
	}
	content := completionContent(completion)
	if content == "" {
		return Plan{}, fmt.Errorf("analyze: %w: empty completion (finish_reason=%q, refusal=%q)",
			services.ErrProviderRejected, completionFinishReason(completion), completionRefusal(completion))
	}

	plan, err := decodePlan(content)
	if err != nil {
		return Plan{}, fmt.Errorf("analyze: %w: %v", services.ErrProviderRejected, err)
	}
	plan = c.normalize(plan)
	if len(plan.Scenes) == 0 {
		return Plan{}, fmt.Errorf("analyze: %w: storyboard has no usable scenes", services.ErrProviderRejected)
	}

	c.logger.Info("storyboard extracted",
		logging.String("title", plan.Title),
		logging.Int("scenes", len(plan.Scenes)),
	)
	return plan, nil
}

func completionContent(completion chatResponse) string {
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content
		}
		if content := strings.TrimSpace(choice.Delta.Content); content != "" {
			return content
		}
	}
	return ""
}

func completionFinishReason(completion chatResponse) string {
	for _, choice := range completion.Choices {
		if reason := strings.TrimSpace(choice.FinishReason); reason != "" {
			return reason
		}
	}
	return ""
}

func completionRefusal(completion chatResponse) string {
	for _, choice := range completion.Choices {
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return refusal
		}
		if refusal := strings.TrimSpace(choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

// decodePlan parses the model's JSON, tolerating code fences and prose
// wrapped around the object.
func decodePlan(content string) (Plan, error) {
	var plan Plan
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return plan, fmt.Errorf("empty storyboard payload")
	}
	if err := json.Unmarshal([]byte(trimmed), &plan); err == nil {
		return plan, nil
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &plan); err == nil {
				return plan, nil
			}
		}
	}
	return plan, fmt.Errorf("parse storyboard: %s", payloadSnippet(trimmed))
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func (c *Client) normalize(plan Plan) Plan {
	plan.Title = strings.TrimSpace(plan.Title)
	plan.ThumbnailPrompt = strings.TrimSpace(plan.ThumbnailPrompt)
	scenes := plan.Scenes[:0]
	for _, scene := range plan.Scenes {
		scene.Prompt = strings.TrimSpace(scene.Prompt)
		if scene.Prompt == "" {
			continue
		}
		if scene.DurationHint < 0 {
			scene.DurationHint = 0
		}
		scenes = append(scenes, scene)
	}
	plan.Scenes = scenes
	if max := c.cfg.MaxScenes; max > 0 && len(plan.Scenes) > max {
		c.logger.Warn("storyboard clamped",
			logging.Int("scenes", len(plan.Scenes)),
			logging.Int("max_scenes", max),
		)
		plan.Scenes = plan.Scenes[:max]
	}
	return plan
}

func classifyStatus(status int, body []byte) error {
	snippet := payloadSnippet(string(body))
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("analyze: %w: http %d: %s", services.ErrTransientBackend, status, snippet)
	default:
		return fmt.Errorf("analyze: %w: http %d: %s", services.ErrProviderRejected, status, snippet)
	}
}

func payloadSnippet(content string) string {
	trimmed := strings.Join(strings.Fields(content), " ")
	if trimmed == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(trimmed)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return trimmed
}

package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/services"
)

const defaultRequestTimeout = 60 * time.Second

// Request is the provider payload for one chunk.
type Request struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// ProviderClient synthesizes one chunk into audio bytes.
type ProviderClient interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured endpoint (primarily for tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = strings.TrimSpace(baseURL)
		}
	}
}

// Client talks to the synthesis provider's REST endpoint.
type Client struct {
	cfg        config.Synthesis
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a provider client from the synthesis configuration.
func NewClient(cfg config.Synthesis, opts ...ClientOption) *Client {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimSpace(cfg.Endpoint),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Synthesize submits one chunk and returns the audio bytes.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: synthesis endpoint not configured", services.ErrConfiguration)
	}
	if req.Text == "" {
		return nil, errors.New("synthesize: empty chunk")
	}
	if ceiling := c.cfg.ChunkByteCeiling; ceiling > 0 && len(req.Text) > ceiling {
		return nil, fmt.Errorf("%w: chunk is %d bytes, provider ceiling is %d", services.ErrConfiguration, len(req.Text), ceiling)
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("synthesize: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w: %v", services.Classify(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("synthesize: read audio: %w: %v", services.ErrTransientBackend, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesize: %w: empty audio response", services.ErrProviderRejected)
	}
	return audio, nil
}

func classifyStatus(resp *http.Response) error {
	snippet := bodySnippet(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("synthesize: %w: http %d: %s", services.ErrTransientBackend, resp.StatusCode, snippet)
	default:
		return fmt.Errorf("synthesize: %w: http %d: %s", services.ErrProviderRejected, resp.StatusCode, snippet)
	}
}

func bodySnippet(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}

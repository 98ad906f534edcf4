package imagegen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/services"
)

const (
	defaultTimeout  = time.Minute
	defaultMinBytes = 1024
	maxImageBytes   = 32 << 20
)

// Result lists the files one asset run produced.
type Result struct {
	ScenePaths    []string
	ThumbnailPath string
	Images        int
}

// Client downloads generated stills over plain HTTP GET.
type Client struct {
	cfg        config.ImageGen
	httpClient *http.Client
	logger     *slog.Logger
	retry      services.RetryPolicy
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

// NewClient constructs an image client from configuration. The HTTP timeout
// is the per-image budget; retries for transient failures stay inside Fetch.
func NewClient(cfg config.ImageGen, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "imagegen")
	timeout := defaultTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = defaultMinBytes
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		retry:      services.RetryPolicy{Operation: "fetch image", Logger: logger},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Generate fetches one still per scene prompt plus the thumbnail into dir.
// Scene files are scene_01.png, scene_02.png, ... in prompt order.
func (c *Client) Generate(ctx context.Context, scenePrompts []string, thumbnailPrompt, dir string) (Result, error) {
	if c.cfg.Endpoint == "" {
		return Result{}, fmt.Errorf("imagegen: %w: endpoint not configured", services.ErrConfiguration)
	}
	if len(scenePrompts) == 0 {
		return Result{}, fmt.Errorf("imagegen: %w: no scene prompts", services.ErrValidationFailed)
	}

	result := Result{ScenePaths: make([]string, 0, len(scenePrompts))}
	for i, prompt := range scenePrompts {
		path := filepath.Join(dir, fmt.Sprintf("scene_%02d.png", i+1))
		if err := c.Fetch(ctx, prompt, i+1, path); err != nil {
			return Result{}, fmt.Errorf("imagegen: scene %d of %d: %w", i+1, len(scenePrompts), err)
		}
		result.ScenePaths = append(result.ScenePaths, path)
		result.Images++
	}

	if thumbnailPrompt = strings.TrimSpace(thumbnailPrompt); thumbnailPrompt != "" {
		path := filepath.Join(dir, "thumbnail.png")
		if err := c.Fetch(ctx, thumbnailPrompt, 0, path); err != nil {
			return Result{}, fmt.Errorf("imagegen: thumbnail: %w", err)
		}
		result.ThumbnailPath = path
		result.Images++
	}

	c.logger.Info("stills generated",
		logging.Int("images", result.Images),
		logging.String("dir", dir),
	)
	return result, nil
}

// Fetch downloads one still into path, retrying transient failures.
func (c *Client) Fetch(ctx context.Context, prompt string, seed int, path string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("%w: empty prompt", services.ErrValidationFailed)
	}
	return services.RetryTransient(ctx, c.retry, func(ctx context.Context) error {
		return c.fetchOnce(ctx, prompt, seed, path)
	})
}

func (c *Client) fetchOnce(ctx context.Context, prompt string, seed int, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageURL(prompt, seed), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", services.Classify(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: http %d: %s", services.ErrTransientBackend, resp.StatusCode, strings.TrimSpace(string(snippet)))
		default:
			return fmt.Errorf("%w: http %d: %s", services.ErrProviderRejected, resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return fmt.Errorf("read image: %w: %v", services.ErrTransientBackend, err)
	}
	// Error pages come back as 200 with a short HTML body.
	if int64(len(data)) < c.cfg.MinBytes {
		return fmt.Errorf("%w: response too small (%d bytes, floor %d)", services.ErrProviderRejected, len(data), c.cfg.MinBytes)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// imageURL builds {endpoint}/{escaped prompt}?height=H&nologo=true&seed=N&width=W.
// The seed is fixed per slot so reruns request identical pictures.
func (c *Client) imageURL(prompt string, seed int) string {
	query := url.Values{}
	if c.cfg.Width > 0 {
		query.Set("width", strconv.Itoa(c.cfg.Width))
	}
	if c.cfg.Height > 0 {
		query.Set("height", strconv.Itoa(c.cfg.Height))
	}
	query.Set("nologo", "true")
	query.Set("seed", strconv.Itoa(seed))
	return c.cfg.Endpoint + "/" + url.PathEscape(prompt) + "?" + query.Encode()
}

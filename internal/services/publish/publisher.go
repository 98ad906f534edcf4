package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/services"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultPollBudget   = 30 * time.Minute
	defaultPrivacy      = "private"

	watchURLFormat = "https://www.youtube.com/watch?v=%s"
)

// Request is one video to put on the platform. ScheduledAt zero means
// publish immediately with the configured privacy.
type Request struct {
	VideoPath     string
	Title         string
	Description   string
	ScheduledAt   time.Time
	SubtitlePath  string
	ThumbnailPath string
}

// Result reports the published video.
type Result struct {
	VideoID string
	URL     string
}

// Client wraps the platform upload and status APIs.
type Client struct {
	cfg          config.Publish
	logger       *slog.Logger
	apiOptions   []option.ClientOption
	pollInterval time.Duration
	pollBudget   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithServiceOptions replaces the Google API client options. Tests use it
// to point the client at a fake endpoint with a plain HTTP client.
func WithServiceOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.apiOptions = opts
	}
}

// NewClient constructs a publish client from configuration.
func NewClient(cfg config.Publish, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(cfg.Privacy) == "" {
		cfg.Privacy = defaultPrivacy
	}
	client := &Client{
		cfg:          cfg,
		logger:       logging.WithComponent(logger, "publish"),
		pollInterval: defaultPollInterval,
		pollBudget:   defaultPollBudget,
	}
	if cfg.PollInterval > 0 {
		client.pollInterval = time.Duration(cfg.PollInterval) * time.Second
	}
	if cfg.PollBudget > 0 {
		client.pollBudget = time.Duration(cfg.PollBudget) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Publish uploads the video, waits until the platform finishes processing
// it, then attaches captions and thumbnail when present.
func (c *Client) Publish(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.VideoPath) == "" {
		return Result{}, fmt.Errorf("publish: %w: video path is empty", services.ErrValidationFailed)
	}
	if strings.TrimSpace(req.Title) == "" {
		return Result{}, fmt.Errorf("publish: %w: title is empty", services.ErrValidationFailed)
	}

	svc, err := c.service(ctx)
	if err != nil {
		return Result{}, err
	}

	videoID, err := c.upload(ctx, svc, req)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("video uploaded, awaiting processing",
		logging.String("video_id", videoID),
		logging.String("title", req.Title),
	)

	if err := c.awaitProcessed(ctx, svc, videoID); err != nil {
		return Result{}, err
	}

	// The video is live from here on. Accessory uploads must not undo that.
	if req.SubtitlePath != "" {
		if err := c.insertCaptions(ctx, svc, videoID, req.SubtitlePath); err != nil {
			c.logger.Warn("caption upload failed", logging.String("video_id", videoID), logging.Error(err))
		}
	}
	if req.ThumbnailPath != "" {
		if err := c.setThumbnail(ctx, svc, videoID, req.ThumbnailPath); err != nil {
			c.logger.Warn("thumbnail upload failed", logging.String("video_id", videoID), logging.Error(err))
		}
	}

	result := Result{VideoID: videoID, URL: fmt.Sprintf(watchURLFormat, videoID)}
	c.logger.Info("video published", logging.String("video_id", videoID), logging.String("url", result.URL))
	return result, nil
}

func (c *Client) service(ctx context.Context) (*youtube.Service, error) {
	opts := c.apiOptions
	if len(opts) == 0 {
		if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" || c.cfg.RefreshToken == "" {
			return nil, fmt.Errorf("publish: %w: client id, client secret, and refresh token are required", services.ErrConfiguration)
		}
		conf := &oauth2.Config{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
		}
		// Expired token forces an immediate refresh on first use.
		token := &oauth2.Token{
			RefreshToken: c.cfg.RefreshToken,
			Expiry:       time.Now().Add(-time.Hour),
		}
		opts = []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, conf.TokenSource(ctx, token)))}
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish: build service: %w", err)
	}
	return svc, nil
}

func (c *Client) upload(ctx context.Context, svc *youtube.Service, req Request) (string, error) {
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: c.description(req.Description),
			Tags:        c.cfg.Tags,
			CategoryId:  c.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: c.cfg.Privacy,
		},
	}
	if !req.ScheduledAt.IsZero() {
		// Scheduling requires the video to sit private until publishAt.
		video.Status.PrivacyStatus = "private"
		video.Status.PublishAt = req.ScheduledAt.UTC().Format(time.RFC3339)
	}

	f, err := os.Open(req.VideoPath)
	if err != nil {
		return "", fmt.Errorf("publish: open video: %w", err)
	}
	defer f.Close()

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(c.cfg.NotifySubscribers).
		Media(f).
		Context(ctx)
	uploaded, err := call.Do()
	if err != nil {
		return "", classifyAPIError("upload", err)
	}
	if uploaded == nil || uploaded.Id == "" {
		return "", fmt.Errorf("publish: %w: upload response carries no video id", services.ErrPublishRejected)
	}
	return uploaded.Id, nil
}

// awaitProcessed polls the processing status until the platform settles or
// the budget runs out. Unknown status payloads keep the loop alive; the
// platform adds states faster than this client learns them.
func (c *Client) awaitProcessed(ctx context.Context, svc *youtube.Service, videoID string) error {
	deadline := time.Now().Add(c.pollBudget)
	lastSeen := "uploaded"
	for {
		state, err := c.checkOnce(ctx, svc, videoID)
		switch {
		case err != nil && services.IsRetryable(err) && time.Now().Before(deadline):
			c.logger.Warn("status poll failed, will retry", logging.String("video_id", videoID), logging.Error(err))
		case err != nil:
			return err
		default:
			switch state.Kind {
			case StateProcessed:
				return nil
			case StateRejected, StateFailed:
				return fmt.Errorf("publish: %w: %s", services.ErrPublishRejected, state.Reason)
			case StateUnparseable:
				lastSeen = state.RawStatus
				c.logger.Warn("unrecognized processing status",
					logging.String("video_id", videoID),
					logging.String("raw_status", state.RawStatus),
				)
			case StateProcessing:
				lastSeen = "processing"
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("publish: %w: processing not settled within %s (last status: %s)",
				services.ErrTimeout, c.pollBudget, lastSeen)
		}
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("publish: %w: %v", services.Classify(ctx.Err()), ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) checkOnce(ctx context.Context, svc *youtube.Service, videoID string) (State, error) {
	resp, err := svc.Videos.List([]string{"status", "processingDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return State{}, classifyAPIError("status poll", err)
	}
	if len(resp.Items) == 0 {
		// Fresh uploads can lag out of the list view; not yet a verdict.
		return State{Kind: StateUnparseable, RawStatus: "<video not listed>"}, nil
	}
	return stateOf(resp.Items[0]), nil
}

func (c *Client) insertCaptions(ctx context.Context, svc *youtube.Service, videoID, subtitlePath string) error {
	f, err := os.Open(subtitlePath)
	if err != nil {
		return fmt.Errorf("open subtitles: %w", err)
	}
	defer f.Close()

	language := c.cfg.CaptionLanguage
	if language == "" {
		language = "ko"
	}
	caption := &youtube.Caption{
		Snippet: &youtube.CaptionSnippet{
			VideoId:  videoID,
			Language: language,
			Name:     "",
		},
	}
	if _, err := svc.Captions.Insert([]string{"snippet"}, caption).Media(f).Context(ctx).Do(); err != nil {
		return classifyAPIError("captions", err)
	}
	return nil
}

func (c *Client) setThumbnail(ctx context.Context, svc *youtube.Service, videoID, thumbnailPath string) error {
	f, err := os.Open(thumbnailPath)
	if err != nil {
		return fmt.Errorf("open thumbnail: %w", err)
	}
	defer f.Close()

	if _, err := svc.Thumbnails.Set(videoID).Media(f).Context(ctx).Do(); err != nil {
		return classifyAPIError("thumbnail", err)
	}
	return nil
}

func (c *Client) description(base string) string {
	base = strings.TrimSpace(base)
	suffix := strings.TrimSpace(c.cfg.DescriptionSuffix)
	switch {
	case base == "":
		return suffix
	case suffix == "":
		return base
	default:
		return base + "\n\n" + suffix
	}
}

// classifyAPIError maps Google API failures onto the taxonomy: quota and
// server trouble is transient, auth trouble is configuration, anything else
// the platform said no to is a publish rejection carrying its message.
func classifyAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return fmt.Errorf("publish: %s: %w: http %d: %s", op, services.ErrTransientBackend, apiErr.Code, apiErr.Message)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("publish: %s: %w: http %d: %s", op, services.ErrConfiguration, apiErr.Code, apiErr.Message)
		default:
			return fmt.Errorf("publish: %s: %w: %s", op, services.ErrPublishRejected, apiErr.Message)
		}
	}
	return fmt.Errorf("publish: %s: %w: %v", op, services.Classify(err), err)
}

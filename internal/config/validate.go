package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSheet(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSheet() error {
	if c.Sheet.SpreadsheetID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/vidpipe/config.toml"
		}
		return fmt.Errorf("sheet.spreadsheet_id is required. Set VIDPIPE_SPREADSHEET_ID env var or edit %s (create with 'vidpipe config init')", defaultPath)
	}
	headers := map[string]string{
		"sheet.header_status":     c.Sheet.HeaderStatus,
		"sheet.header_script":     c.Sheet.HeaderScript,
		"sheet.header_result_url": c.Sheet.HeaderResultURL,
		"sheet.header_error":      c.Sheet.HeaderError,
		"sheet.header_started_at": c.Sheet.HeaderStartedAt,
	}
	for key, value := range headers {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":      c.Workflow.PollInterval,
		"workflow.reclaim_timeout":    c.Workflow.ReclaimTimeout,
		"workflow.stage_attempts":     c.Workflow.StageAttempts,
		"workflow.retry_delay":        c.Workflow.RetryDelay,
		"workflow.analysis_timeout":   c.Workflow.AnalysisTimeout,
		"workflow.synthesis_timeout":  c.Workflow.SynthesisTimeout,
		"workflow.asset_timeout":      c.Workflow.AssetTimeout,
		"workflow.render_timeout":     c.Workflow.RenderTimeout,
		"workflow.validation_timeout": c.Workflow.ValidationTimeout,
		"workflow.publish_timeout":    c.Workflow.PublishTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.ReclaimTimeout <= c.Workflow.PollInterval {
		return errors.New("workflow.reclaim_timeout must be greater than workflow.poll_interval")
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if strings.TrimSpace(c.Synthesis.Endpoint) == "" {
		return errors.New("synthesis.endpoint must be set")
	}
	if c.Synthesis.ChunkByteLimit <= 0 {
		return errors.New("synthesis.chunk_byte_limit must be positive")
	}
	if c.Synthesis.ChunkByteCeiling < c.Synthesis.ChunkByteLimit {
		return errors.New("synthesis.chunk_byte_ceiling must be at least synthesis.chunk_byte_limit")
	}
	if c.Synthesis.SpeakingRate <= 0 {
		return errors.New("synthesis.speaking_rate must be positive")
	}
	return nil
}

func (c *Config) validateRender() error {
	if err := ensurePositiveMap(map[string]int{
		"render.width":         c.Render.Width,
		"render.height":        c.Render.Height,
		"render.fps":           c.Render.FPS,
		"render.scene_workers": c.Render.SceneWorkers,
	}); err != nil {
		return err
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return errors.New("render.crf must be between 0 and 51")
	}
	if c.Render.TransitionDuration < 0 {
		return errors.New("render.transition_duration must not be negative")
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.MinDurationSeconds < 0 {
		return errors.New("validation.min_duration_seconds must not be negative")
	}
	if c.Validation.MinSizeBytes < 0 {
		return errors.New("validation.min_size_bytes must not be negative")
	}
	if c.Validation.DecodeProbeSeconds <= 0 {
		return errors.New("validation.decode_probe_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePublish() error {
	switch c.Publish.Privacy {
	case "private", "unlisted", "public":
	default:
		return fmt.Errorf("publish.privacy must be private, unlisted, or public (got %q)", c.Publish.Privacy)
	}
	if err := ensurePositiveMap(map[string]int{
		"publish.poll_interval": c.Publish.PollInterval,
		"publish.poll_budget":   c.Publish.PollBudget,
	}); err != nil {
		return err
	}
	if c.Publish.PollBudget <= c.Publish.PollInterval {
		return errors.New("publish.poll_budget must be greater than publish.poll_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSheet()
	c.normalizeSynthesis()
	c.normalizeScriptAnalysis()
	c.normalizeImageGen()
	c.normalizeRender()
	if err := c.normalizePublish(); err != nil {
		return err
	}
	c.normalizeLogging()
	return c.normalizeDaemon()
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.JournalPath, err = expandPath(c.Paths.JournalPath); err != nil {
		return fmt.Errorf("paths.journal_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeSheet() {
	c.Sheet.SpreadsheetID = strings.TrimSpace(c.Sheet.SpreadsheetID)
	if c.Sheet.SpreadsheetID == "" {
		if value, ok := os.LookupEnv("VIDPIPE_SPREADSHEET_ID"); ok {
			c.Sheet.SpreadsheetID = strings.TrimSpace(value)
		}
	}
	c.Sheet.SheetName = strings.TrimSpace(c.Sheet.SheetName)
	if c.Sheet.SheetName == "" {
		c.Sheet.SheetName = defaultSheetName
	}
	if expanded, err := expandPath(strings.TrimSpace(c.Sheet.CredentialsFile)); err == nil {
		c.Sheet.CredentialsFile = expanded
	}
	if c.Sheet.CredentialsFile == "" {
		if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Sheet.CredentialsFile = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Endpoint = strings.TrimSpace(c.Synthesis.Endpoint)
	if c.Synthesis.APIKey == "" {
		if value, ok := os.LookupEnv("TTS_API_KEY"); ok {
			c.Synthesis.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Synthesis.SpeakingRate == 0 {
		c.Synthesis.SpeakingRate = defaultSynthesisRate
	}
	if c.Synthesis.ChunkByteLimit <= 0 {
		c.Synthesis.ChunkByteLimit = defaultChunkByteLimit
	}
	if c.Synthesis.ChunkByteCeiling <= 0 {
		c.Synthesis.ChunkByteCeiling = defaultChunkByteCeiling
	}
}

func (c *Config) normalizeScriptAnalysis() {
	c.ScriptAnalysis.BaseURL = strings.TrimSpace(c.ScriptAnalysis.BaseURL)
	if c.ScriptAnalysis.BaseURL == "" {
		c.ScriptAnalysis.BaseURL = defaultAnalysisBaseURL
	}
	if c.ScriptAnalysis.APIKey == "" {
		if value, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.ScriptAnalysis.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.ScriptAnalysis.APIKey = strings.TrimSpace(value)
		}
	}
	if c.ScriptAnalysis.MaxScenes <= 0 {
		c.ScriptAnalysis.MaxScenes = defaultAnalysisMaxScenes
	}
}

func (c *Config) normalizeImageGen() {
	c.ImageGen.Endpoint = strings.TrimRight(strings.TrimSpace(c.ImageGen.Endpoint), "/")
	if c.ImageGen.Endpoint == "" {
		c.ImageGen.Endpoint = defaultImageEndpoint
	}
	if c.ImageGen.Width <= 0 {
		c.ImageGen.Width = defaultRenderWidth
	}
	if c.ImageGen.Height <= 0 {
		c.ImageGen.Height = defaultRenderHeight
	}
	if c.ImageGen.MinBytes <= 0 {
		c.ImageGen.MinBytes = defaultImageMinBytes
	}
}

func (c *Config) normalizeRender() {
	if strings.TrimSpace(c.Render.FFmpegBinary) == "" {
		c.Render.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(c.Render.FFprobeBinary) == "" {
		c.Render.FFprobeBinary = "ffprobe"
	}
	if c.Render.SceneWorkers <= 0 {
		c.Render.SceneWorkers = defaultSceneWorkers
	}
	if c.Render.StderrTailLines <= 0 {
		c.Render.StderrTailLines = defaultStderrTailLines
	}
}

func (c *Config) normalizePublish() error {
	if c.Publish.ClientID == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CLIENT_ID"); ok {
			c.Publish.ClientID = strings.TrimSpace(value)
		}
	}
	if c.Publish.ClientSecret == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CLIENT_SECRET"); ok {
			c.Publish.ClientSecret = strings.TrimSpace(value)
		}
	}
	if c.Publish.RefreshToken == "" {
		if value, ok := os.LookupEnv("YOUTUBE_REFRESH_TOKEN"); ok {
			c.Publish.RefreshToken = strings.TrimSpace(value)
		}
	}
	c.Publish.Privacy = strings.ToLower(strings.TrimSpace(c.Publish.Privacy))
	if c.Publish.Privacy == "" {
		c.Publish.Privacy = defaultPublishPrivacy
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeDaemon() error {
	c.Daemon.APIBind = strings.TrimSpace(c.Daemon.APIBind)
	if c.Daemon.APIBind == "" {
		c.Daemon.APIBind = defaultAPIBind
	}
	var err error
	if c.Daemon.SocketPath, err = expandPath(c.Daemon.SocketPath); err != nil {
		return fmt.Errorf("daemon.socket_path: %w", err)
	}
	if c.Daemon.LockPath, err = expandPath(c.Daemon.LockPath); err != nil {
		return fmt.Errorf("daemon.lock_path: %w", err)
	}
	return nil
}

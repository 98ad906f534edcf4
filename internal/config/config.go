package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "VIDPIPE_CONFIG"

// Paths contains directory and file location configuration.
type Paths struct {
	WorkDir     string `toml:"work_dir"`
	LogDir      string `toml:"log_dir"`
	JournalPath string `toml:"journal_path"`
}

// Workflow contains orchestrator timing. All values are seconds unless the
// field name says otherwise.
type Workflow struct {
	PollInterval           int `toml:"poll_interval"`
	ReclaimTimeout         int `toml:"reclaim_timeout"`
	StageAttempts          int `toml:"stage_attempts"`
	RetryDelay             int `toml:"retry_delay"`
	AnalysisTimeout        int `toml:"analysis_timeout"`
	SynthesisTimeout       int `toml:"synthesis_timeout"`
	AssetTimeout           int `toml:"asset_timeout"`
	RenderTimeout          int `toml:"render_timeout"`
	RenderTimeoutPerMinute int `toml:"render_timeout_per_minute"`
	ValidationTimeout      int `toml:"validation_timeout"`
	PublishTimeout         int `toml:"publish_timeout"`
}

// Sheet contains the spreadsheet queue configuration. Header values are
// matched against the sheet's header row by exact cell text, so column
// order and position never matter.
type Sheet struct {
	SpreadsheetID   string `toml:"spreadsheet_id"`
	SheetName       string `toml:"sheet_name"`
	CredentialsFile string `toml:"credentials_file"`

	HeaderStatus    string `toml:"header_status"`
	HeaderScript    string `toml:"header_script"`
	HeaderScheduled string `toml:"header_scheduled"`
	HeaderTitle     string `toml:"header_title"`
	HeaderThumbnail string `toml:"header_thumbnail"`
	HeaderResultURL string `toml:"header_result_url"`
	HeaderError     string `toml:"header_error"`
	HeaderCost      string `toml:"header_cost"`
	HeaderStartedAt string `toml:"header_started_at"`
}

// Synthesis contains the TTS provider configuration.
type Synthesis struct {
	Endpoint         string  `toml:"endpoint"`
	APIKey           string  `toml:"api_key"`
	Voice            string  `toml:"voice"`
	SpeakingRate     float64 `toml:"speaking_rate"`
	Pitch            float64 `toml:"pitch"`
	ChunkByteLimit   int     `toml:"chunk_byte_limit"`
	ChunkByteCeiling int     `toml:"chunk_byte_ceiling"`
	RequestTimeout   int     `toml:"request_timeout"`
	CostPer1KChars   float64 `toml:"cost_per_1k_chars"`
}

// ScriptAnalysis contains the LLM connection used for scene extraction.
type ScriptAnalysis struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	RequestTimeout int     `toml:"request_timeout"`
	MaxScenes      int     `toml:"max_scenes"`
	CostPerCall    float64 `toml:"cost_per_call"`
}

// ImageGen contains the image provider configuration.
type ImageGen struct {
	Endpoint       string  `toml:"endpoint"`
	Width          int     `toml:"width"`
	Height         int     `toml:"height"`
	RequestTimeout int     `toml:"request_timeout"`
	MinBytes       int64   `toml:"min_bytes"`
	CostPerImage   float64 `toml:"cost_per_image"`
}

// Render contains encoder settings.
type Render struct {
	FFmpegBinary       string  `toml:"ffmpeg_binary"`
	FFprobeBinary      string  `toml:"ffprobe_binary"`
	Width              int     `toml:"width"`
	Height             int     `toml:"height"`
	FPS                int     `toml:"fps"`
	Preset             string  `toml:"preset"`
	CRF                int     `toml:"crf"`
	AudioBitrate       string  `toml:"audio_bitrate"`
	SceneWorkers       int     `toml:"scene_workers"`
	TransitionDuration float64 `toml:"transition_duration"`
	StderrTailLines    int     `toml:"stderr_tail_lines"`
	SubtitleStyle      string  `toml:"subtitle_style"`
}

// Validation contains output quality gate floors.
type Validation struct {
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
	MinSizeBytes       int64   `toml:"min_size_bytes"`
	MinWidth           int     `toml:"min_width"`
	MinHeight          int     `toml:"min_height"`
	DecodeProbeSeconds int     `toml:"decode_probe_seconds"`
}

// Publish contains the upload platform configuration. Credentials fall back
// to YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, and YOUTUBE_REFRESH_TOKEN.
type Publish struct {
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	RefreshToken      string   `toml:"refresh_token"`
	Privacy           string   `toml:"privacy"`
	CategoryID        string   `toml:"category_id"`
	Tags              []string `toml:"tags"`
	DescriptionSuffix string   `toml:"description_suffix"`
	NotifySubscribers bool     `toml:"notify_subscribers"`
	CaptionLanguage   string   `toml:"caption_language"`
	PollInterval      int      `toml:"poll_interval"`
	PollBudget        int      `toml:"poll_budget"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Daemon contains process-level settings.
type Daemon struct {
	APIBind    string `toml:"api_bind"`
	SocketPath string `toml:"socket_path"`
	LockPath   string `toml:"lock_path"`
}

// Config encapsulates all configuration values for the pipeline daemon.
//
// Configuration sections by subsystem:
//   - Paths: work/log directories and the run journal location
//   - Workflow: polling cadence, reclaim window, stage timeouts and budgets
//   - Sheet: spreadsheet queue identity and column header names
//   - Synthesis: TTS provider endpoint, voice, chunking limits
//   - ScriptAnalysis: LLM connection for scene/title extraction
//   - ImageGen: image provider endpoint and sizing
//   - Render: ffmpeg/ffprobe settings and the scene worker pool
//   - Validation: output floors and the decode probe window
//   - Publish: upload credentials, privacy, status polling
//   - Notifications: ntfy topic and event toggles
//   - Logging: format and level
//   - Daemon: API bind address, control socket, and lock file
type Config struct {
	Paths          Paths          `toml:"paths"`
	Workflow       Workflow       `toml:"workflow"`
	Sheet          Sheet          `toml:"sheet"`
	Synthesis      Synthesis      `toml:"synthesis"`
	ScriptAnalysis ScriptAnalysis `toml:"scriptanalysis"`
	ImageGen       ImageGen       `toml:"imagegen"`
	Render         Render         `toml:"render"`
	Validation     Validation     `toml:"validation"`
	Publish        Publish        `toml:"publish"`
	Notifications  Notifications  `toml:"notifications"`
	Logging        Logging        `toml:"logging"`
	Daemon         Daemon         `toml:"daemon"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidpipe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	// A .env next to the working directory feeds the credential override
	// chain below. Missing files are fine.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, path := range []string{c.Paths.JournalPath, c.Daemon.SocketPath, c.Daemon.LockPath} {
		dir := filepath.Dir(path)
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the queue polling cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// ReclaimTimeout returns the stale-processing reclaim window as a duration.
func (c *Config) ReclaimTimeout() time.Duration {
	return time.Duration(c.Workflow.ReclaimTimeout) * time.Second
}

// RenderTimeoutFor scales the encoder budget with the audio length so long
// videos are not killed by a flat deadline.
func (c *Config) RenderTimeoutFor(audioDuration time.Duration) time.Duration {
	base := time.Duration(c.Workflow.RenderTimeout) * time.Second
	if c.Workflow.RenderTimeoutPerMinute <= 0 {
		return base
	}
	minutes := int(audioDuration.Minutes())
	if audioDuration > time.Duration(minutes)*time.Minute {
		minutes++
	}
	return base + time.Duration(minutes*c.Workflow.RenderTimeoutPerMinute)*time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

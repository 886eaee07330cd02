package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir" env:"VERISCOPE_DATA_DIR"`
	StagingDir string `toml:"staging_dir" env:"VERISCOPE_STAGING_DIR"`
	ReportsDir string `toml:"reports_dir"`
	LogDir     string `toml:"log_dir" env:"VERISCOPE_LOG_DIR"`
}

// Media contains configuration for media intake.
type Media struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
	MaxSizeMB         int      `toml:"max_size_mb"`
}

// Extraction contains configuration for frame and audio extraction.
type Extraction struct {
	FPS            int `toml:"fps"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Transcription contains configuration for the speech-to-text engine.
type Transcription struct {
	Enabled        bool   `toml:"enabled"`
	Binary         string `toml:"binary" env:"VERISCOPE_WHISPER_BINARY"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Models contains the model identity recorded with every inference run.
type Models struct {
	VideoName      string `toml:"video_name"`
	VideoVersion   string `toml:"video_version"`
	AudioName      string `toml:"audio_name"`
	AudioVersion   string `toml:"audio_version"`
	LipsyncName    string `toml:"lipsync_name"`
	LipsyncVersion string `toml:"lipsync_version"`
}

// Analysis contains configuration for the per-modality score sources.
// When a command is empty or the binary is missing from PATH the modality
// falls back to the deterministic simulated source.
type Analysis struct {
	Simulate       bool   `toml:"simulate" env:"VERISCOPE_SIMULATE"`
	VideoCommand   string `toml:"video_command"`
	AudioCommand   string `toml:"audio_command"`
	LipsyncCommand string `toml:"lipsync_command"`
}

// Fusion contains the base weights used by the fusion engine.
type Fusion struct {
	VideoWeight   float64 `toml:"video_weight"`
	AudioWeight   float64 `toml:"audio_weight"`
	LipsyncWeight float64 `toml:"lipsync_weight"`
}

// Workflow contains configuration for daemon timing, workers, and retries.
type Workflow struct {
	Workers            int `toml:"workers" env:"VERISCOPE_WORKERS"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	StageAttempts      int `toml:"stage_attempts"`
	StageRetryDelay    int `toml:"stage_retry_delay"`
	StageTimeout       int `toml:"stage_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" env:"VERISCOPE_LOG_FORMAT"`
	Level         string `toml:"level" env:"VERISCOPE_LOG_LEVEL"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" env:"VERISCOPE_NTFY_TOPIC"`
	RequestTimeout int    `toml:"request_timeout"`
	JobQueued      bool   `toml:"job_queued"`
	JobCompleted   bool   `toml:"job_completed"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for veriscope.
//
// Configuration sections by subsystem:
//   - Paths: data, staging, reports, and log directories
//   - Media: accepted file extensions and size limits
//   - Extraction: frame sampling rate and ffmpeg timeouts
//   - Transcription: whisper engine binary, model, and timeout
//   - Models: model names and versions stamped on inference runs
//   - Analysis: per-modality inference commands and simulation toggle
//   - Fusion: base weights for score fusion
//   - Workflow: worker count, polling, heartbeats, and retry policy
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Media         Media         `toml:"media"`
	Extraction    Extraction    `toml:"extraction"`
	Transcription Transcription `toml:"transcription"`
	Models        Models        `toml:"models"`
	Analysis      Analysis      `toml:"analysis"`
	Fusion        Fusion        `toml:"fusion"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/veriscope/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables with the VERISCOPE_ prefix override file values. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
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

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("apply env overrides: %w", err)
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

	defaultPath, err := expandPath("~/.config/veriscope/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("veriscope.toml")
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
	for _, dir := range []string{c.Paths.DataDir, c.MediaDir(), c.Paths.StagingDir, c.Paths.ReportsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "veriscope.db")
}

// MediaDir returns the directory where registered media files are stored.
func (c *Config) MediaDir() string {
	return filepath.Join(c.Paths.DataDir, "media")
}

// FFmpegBinary returns the ffmpeg executable name used for extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// MaxMediaBytes returns the media size limit in bytes.
func (c *Config) MaxMediaBytes() int64 {
	return int64(c.Media.MaxSizeMB) * 1024 * 1024
}

// ExtensionAllowed reports whether a filename carries an accepted media extension.
func (c *Config) ExtensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Media.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
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
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

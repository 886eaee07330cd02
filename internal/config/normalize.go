package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeExtraction()
	c.normalizeTranscription()
	c.normalizeModels()
	c.normalizeFusion()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.ReportsDir, err = expandPath(c.Paths.ReportsDir); err != nil {
		return fmt.Errorf("paths.reports_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() {
	if len(c.Media.AllowedExtensions) == 0 {
		c.Media.AllowedExtensions = defaultAllowedExtensions()
		return
	}
	exts := make([]string, 0, len(c.Media.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Media.AllowedExtensions))
	for _, ext := range c.Media.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultAllowedExtensions()
	}
	c.Media.AllowedExtensions = exts
}

func (c *Config) normalizeExtraction() {
	if c.Extraction.FPS <= 0 {
		c.Extraction.FPS = defaultExtractionFPS
	}
	if c.Extraction.TimeoutSeconds <= 0 {
		c.Extraction.TimeoutSeconds = defaultExtractionTimeout
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Binary = strings.TrimSpace(c.Transcription.Binary)
	if c.Transcription.Binary == "" {
		c.Transcription.Binary = defaultWhisperBinary
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperModel
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionWait
	}
}

func (c *Config) normalizeModels() {
	trim := func(value, fallback string) string {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
		return fallback
	}
	c.Models.VideoName = trim(c.Models.VideoName, defaultVideoModelName)
	c.Models.VideoVersion = trim(c.Models.VideoVersion, defaultModelVersion)
	c.Models.AudioName = trim(c.Models.AudioName, defaultAudioModelName)
	c.Models.AudioVersion = trim(c.Models.AudioVersion, defaultModelVersion)
	c.Models.LipsyncName = trim(c.Models.LipsyncName, defaultLipsyncModelName)
	c.Models.LipsyncVersion = trim(c.Models.LipsyncVersion, defaultModelVersion)
}

func (c *Config) normalizeFusion() {
	if c.Fusion.VideoWeight == 0 && c.Fusion.AudioWeight == 0 && c.Fusion.LipsyncWeight == 0 {
		c.Fusion.VideoWeight = defaultVideoWeight
		c.Fusion.AudioWeight = defaultAudioWeight
		c.Fusion.LipsyncWeight = defaultLipsyncWeight
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.StageAttempts <= 0 {
		c.Workflow.StageAttempts = defaultStageAttempts
	}
	if c.Workflow.StageRetryDelay < 0 {
		c.Workflow.StageRetryDelay = defaultStageRetryDelay
	}
	if c.Workflow.StageTimeout <= 0 {
		c.Workflow.StageTimeout = defaultStageTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateFusion(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMedia() error {
	if len(c.Media.AllowedExtensions) == 0 {
		return errors.New("media.allowed_extensions must include at least one extension")
	}
	if c.Media.MaxSizeMB <= 0 {
		return errors.New("media.max_size_mb must be positive")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	return ensurePositiveMap(map[string]int{
		"extraction.fps":                c.Extraction.FPS,
		"extraction.timeout_seconds":    c.Extraction.TimeoutSeconds,
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
	})
}

func (c *Config) validateFusion() error {
	weights := map[string]float64{
		"fusion.video_weight":   c.Fusion.VideoWeight,
		"fusion.audio_weight":   c.Fusion.AudioWeight,
		"fusion.lipsync_weight": c.Fusion.LipsyncWeight,
	}
	sum := 0.0
	for key, w := range weights {
		if w < 0.05 {
			return fmt.Errorf("%s must be at least 0.05", key)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("fusion weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.stage_attempts":       c.Workflow.StageAttempts,
		"workflow.stage_timeout":        c.Workflow.StageTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.StageRetryDelay < 0 {
		return errors.New("workflow.stage_retry_delay must be >= 0")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
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

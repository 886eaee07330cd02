package config

const (
	defaultDataDir             = "~/.local/share/veriscope/data"
	defaultStagingDir          = "~/.local/share/veriscope/staging"
	defaultReportsDir          = "~/.local/share/veriscope/reports"
	defaultLogDir              = "~/.local/share/veriscope/logs"
	defaultLogRetentionDays    = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultMediaMaxSizeMB      = 500
	defaultExtractionFPS       = 5
	defaultExtractionTimeout   = 300
	defaultWhisperBinary       = "whisper"
	defaultWhisperModel        = "base"
	defaultTranscriptionWait   = 600
	defaultVideoModelName      = "video_forensics_vit"
	defaultAudioModelName      = "audio_spoof_aasist"
	defaultLipsyncModelName    = "lipsync_verifier"
	defaultModelVersion        = "v1.0.0"
	defaultVideoWeight         = 0.45
	defaultAudioWeight         = 0.30
	defaultLipsyncWeight       = 0.25
	defaultWorkers             = 2
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 10
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultStageAttempts       = 3
	defaultStageRetryDelay     = 2
	defaultStageTimeout        = 1800
	defaultNotifyTimeout       = 10
)

func defaultAllowedExtensions() []string {
	return []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".mp3", ".wav", ".m4a", ".flac"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			ReportsDir: defaultReportsDir,
			LogDir:     defaultLogDir,
		},
		Media: Media{
			AllowedExtensions: defaultAllowedExtensions(),
			MaxSizeMB:         defaultMediaMaxSizeMB,
		},
		Extraction: Extraction{
			FPS:            defaultExtractionFPS,
			TimeoutSeconds: defaultExtractionTimeout,
		},
		Transcription: Transcription{
			Enabled:        true,
			Binary:         defaultWhisperBinary,
			Model:          defaultWhisperModel,
			TimeoutSeconds: defaultTranscriptionWait,
		},
		Models: Models{
			VideoName:      defaultVideoModelName,
			VideoVersion:   defaultModelVersion,
			AudioName:      defaultAudioModelName,
			AudioVersion:   defaultModelVersion,
			LipsyncName:    defaultLipsyncModelName,
			LipsyncVersion: defaultModelVersion,
		},
		Analysis: Analysis{
			Simulate: true,
		},
		Fusion: Fusion{
			VideoWeight:   defaultVideoWeight,
			AudioWeight:   defaultAudioWeight,
			LipsyncWeight: defaultLipsyncWeight,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			StageAttempts:      defaultStageAttempts,
			StageRetryDelay:    defaultStageRetryDelay,
			StageTimeout:       defaultStageTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobQueued:      true,
			JobCompleted:   true,
			Errors:         true,
		},
	}
}

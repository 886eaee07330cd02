package deps

import (
	"strings"

	"veriscope/internal/config"
)

// Requirements derives the dependency list from configuration. ffmpeg and
// ffprobe are always required; the transcription engine and model-backed
// inference commands are optional because the pipeline degrades without
// them (skipped transcript, simulated scoring).
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Frame sampling and audio extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Container and stream validation",
		},
	}

	if cfg.Transcription.Enabled {
		reqs = append(reqs, Requirement{
			Name:        "Whisper",
			Command:     cfg.Transcription.Binary,
			Description: "Word-level transcription for lipsync analysis",
			Optional:    true,
		})
	}

	if !cfg.Analysis.Simulate {
		for _, model := range []struct {
			name    string
			command string
		}{
			{"Video model", cfg.Analysis.VideoCommand},
			{"Audio model", cfg.Analysis.AudioCommand},
			{"Lipsync model", cfg.Analysis.LipsyncCommand},
		} {
			if strings.TrimSpace(model.command) == "" {
				continue
			}
			reqs = append(reqs, Requirement{
				Name:        model.name,
				Command:     model.command,
				Description: "External inference command",
				Optional:    true,
			})
		}
	}

	return reqs
}

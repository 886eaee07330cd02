package pipeline

import (
	"log/slog"

	"veriscope/internal/analysis"
	"veriscope/internal/analysis/audio"
	"veriscope/internal/analysis/lipsync"
	"veriscope/internal/analysis/video"
	"veriscope/internal/config"
	"veriscope/internal/extraction"
	"veriscope/internal/fusion"
	"veriscope/internal/jobs"
	"veriscope/internal/report"
	"veriscope/internal/scoring"
	"veriscope/internal/transcription"
	"veriscope/internal/validation"
)

// BuildStages constructs the standard handler set from configuration. Score
// sources for the inference stages honor the analysis config: command-backed
// models where configured, deterministic simulated scoring otherwise.
func BuildStages(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (StageSet, error) {
	fusionStage, err := fusion.NewStage(cfg, store, logger)
	if err != nil {
		return StageSet{}, err
	}

	videoSvc := video.NewService(cfg, analysis.SourceFor(cfg, scoring.ModalityVideo, logger))
	audioSvc := audio.NewService(cfg, analysis.SourceFor(cfg, scoring.ModalityAudio, logger))
	lipsyncSvc := lipsync.NewService(cfg, analysis.SourceFor(cfg, scoring.ModalityLipsync, logger))

	return StageSet{
		Validation:    validation.NewStage(cfg, store, logger),
		Extraction:    extraction.NewStage(cfg, store, logger),
		Transcription: transcription.NewStage(cfg, store, logger),
		VideoInfer:    analysis.NewStage(cfg, store, logger, videoSvc),
		AudioInfer:    analysis.NewStage(cfg, store, logger, audioSvc),
		Lipsync:       analysis.NewStage(cfg, store, logger, lipsyncSvc),
		Fusion:        fusionStage,
		Report:        report.NewStage(cfg, store, logger),
	}, nil
}

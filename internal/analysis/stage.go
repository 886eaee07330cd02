package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
	"veriscope/internal/stage"
)

var resultKeys = map[scoring.Modality]jobs.ResultKey{
	scoring.ModalityVideo:   jobs.ResultVideo,
	scoring.ModalityAudio:   jobs.ResultAudio,
	scoring.ModalityLipsync: jobs.ResultLipsync,
}

var progressLabels = map[scoring.Modality]string{
	scoring.ModalityVideo:   "Video inference",
	scoring.ModalityAudio:   "Audio inference",
	scoring.ModalityLipsync: "Lipsync verification",
}

// Stage runs one modality service as a pipeline stage. The three inference
// stages are instances of this type bound to different services.
type Stage struct {
	cfg    *config.Config
	store  *jobs.Store
	svc    Service
	logger *slog.Logger
}

// NewStage constructs the inference stage for the given modality service.
func NewStage(cfg *config.Config, store *jobs.Store, logger *slog.Logger, svc Service) *Stage {
	component := "inference"
	if svc != nil {
		component = string(svc.Modality()) + "-inference"
	}
	return &Stage{
		cfg:    cfg,
		store:  store,
		svc:    svc,
		logger: logging.NewComponentLogger(logger, component),
	}
}

// Prepare primes job progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil || s.svc == nil {
		return services.Wrap(services.ErrConfiguration, "analysis", "prepare", "Inference stage is not configured", nil)
	}
	modality := s.svc.Modality()
	job.BeginStage(progressLabels[modality], fmt.Sprintf("Preparing %s analysis", modality))
	return s.store.UpdateProgress(ctx, job)
}

// Execute runs the modality service and persists its outcome, model run, and
// flagged segments. A modality disabled by the job options records an audit
// run with no score and contributes no result.
func (s *Stage) Execute(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil || s.svc == nil {
		return services.Wrap(services.ErrConfiguration, "analysis", "execute", "Inference stage is not configured", nil)
	}
	modality := s.svc.Modality()
	logger := logging.WithContext(ctx, s.logger)

	results, err := job.Results()
	if err != nil {
		return services.Wrap(services.ErrState, "analysis", "decode results", "", err)
	}
	if results.Modality(modality) != nil {
		// A previous attempt finished this modality before crashing.
		logger.Debug("modality result already recorded; skipping",
			logging.String(logging.FieldModality, string(modality)))
		return nil
	}

	opts, err := job.Options()
	if err != nil {
		return services.Wrap(services.ErrState, "analysis", "decode options", "", err)
	}
	if !modalityEnabled(opts, modality) {
		if err := s.store.RecordModelRun(ctx, &jobs.ModelRun{
			JobID:        job.ID,
			Modality:     modality,
			ModelName:    s.svc.ModelName(),
			ModelVersion: s.svc.ModelVersion(),
		}); err != nil {
			return err
		}
		job.ProgressMessage = fmt.Sprintf("%s analysis disabled", progressLabels[modality])
		logger.Info("modality disabled by job options",
			logging.String(logging.FieldModality, string(modality)))
		return nil
	}

	inputs, err := s.stageInputs(ctx, job, results)
	if err != nil {
		return err
	}

	result, err := Run(ctx, s.svc, inputs)
	if err != nil {
		return err
	}

	run := result.Run
	run.JobID = job.ID
	if result.Neutral {
		// No verdict was produced; the audit row keeps a null score.
		run.Score = nil
		run.Confidence = nil
	}
	if err := s.store.RecordModelRun(ctx, &run); err != nil {
		return err
	}

	if len(result.Flagged) > 0 {
		segments := make([]jobs.Segment, len(result.Flagged))
		for i, flag := range result.Flagged {
			segments[i] = jobs.Segment{
				JobID:       job.ID,
				Modality:    modality,
				StartMs:     flag.StartMs,
				EndMs:       flag.EndMs,
				Score:       flag.Score,
				Confidence:  flag.Confidence,
				Description: flag.Description,
			}
		}
		if err := s.store.AddSegments(ctx, job.ID, segments); err != nil {
			return err
		}
	}

	flaggedCount := len(result.Flagged)
	outcome := &jobs.ModalityOutcome{
		Modality:        modality,
		Score:           result.Score,
		Confidence:      result.Confidence,
		Label:           result.Label,
		UnitCount:       result.UnitCount,
		FlaggedCount:    flaggedCount,
		ModelName:       s.svc.ModelName(),
		ModelVersion:    s.svc.ModelVersion(),
		InferenceTimeMs: result.Run.InferenceTimeMs,
		Skipped:         result.Neutral,
		SkipReason:      result.Reason,
	}
	updated, err := s.store.AppendResult(ctx, job.ID, resultKeys[modality], outcome)
	if err != nil {
		return err
	}
	job.ResultsJSON = updated.ResultsJSON

	if result.Neutral {
		job.ProgressMessage = fmt.Sprintf("%s skipped: %s", progressLabels[modality], result.Reason)
		logger.Info("modality skipped",
			logging.String(logging.FieldModality, string(modality)),
			logging.String("reason", result.Reason))
		return nil
	}

	job.ProgressMessage = fmt.Sprintf("%s score %.2f", progressLabels[modality], result.Score)
	logger.Info("modality analysis complete",
		logging.String(logging.FieldModality, string(modality)),
		logging.Float64("score", result.Score),
		logging.Float64("confidence", result.Confidence),
		logging.Int("units", result.UnitCount),
		logging.Int("flagged", flaggedCount),
		logging.Int64("inference_time_ms", result.Run.InferenceTimeMs),
	)
	return nil
}

// HealthCheck reports inference stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	name := "inference"
	if s != nil && s.svc != nil {
		name = string(s.svc.Modality()) + "-inference"
	}
	if s == nil || s.cfg == nil || s.store == nil || s.svc == nil {
		return stage.Unhealthy(name, "inference stage is not configured")
	}
	return stage.Healthy(name)
}

// stageInputs assembles the modality inputs from the media row and the
// extraction and transcription results persisted by earlier stages.
func (s *Stage) stageInputs(ctx context.Context, job *jobs.Job, results jobs.Results) (StageInputs, error) {
	media, err := s.store.GetMedia(ctx, job.MediaID)
	if err != nil {
		return StageInputs{}, err
	}

	inputs := StageInputs{
		MediaPath:  media.StoragePath,
		Filename:   media.OriginalFilename,
		SHA256:     media.SHA256,
		Transcript: results.Transcript,
	}
	if media.DurationMs != nil {
		inputs.DurationMs = *media.DurationMs
	} else if results.Metadata != nil {
		inputs.DurationMs = results.Metadata.DurationMs
	}

	extraction := results.Extraction
	if extraction == nil {
		return StageInputs{}, services.Wrap(services.ErrInput, "analysis", "stage inputs",
			"Extraction result missing; cannot run inference", nil)
	}
	inputs.AudioPath = extraction.AudioPath
	if extraction.FramesDir != "" {
		fps := extraction.FPS
		if fps <= 0 {
			fps = float64(s.cfg.Extraction.FPS)
		}
		frames, err := listFrames(extraction.FramesDir, fps)
		if err != nil {
			return StageInputs{}, err
		}
		inputs.FramesDir = extraction.FramesDir
		inputs.Frames = frames
	}
	return inputs, nil
}

// listFrames enumerates extracted frame files in sample order and derives
// each frame's media timestamp from the sampling rate.
func listFrames(dir string, fps float64) ([]FrameRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "analysis", "list frames",
			fmt.Sprintf("Frames directory unreadable at %s", dir), err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	frames := make([]FrameRef, len(names))
	for i, name := range names {
		frames[i] = FrameRef{
			Index:       i,
			Path:        filepath.Join(dir, name),
			TimestampMs: int64(float64(i) * 1000.0 / fps),
		}
	}
	return frames, nil
}

func modalityEnabled(opts jobs.Options, modality scoring.Modality) bool {
	switch modality {
	case scoring.ModalityVideo:
		return opts.Video
	case scoring.ModalityAudio:
		return opts.Audio
	case scoring.ModalityLipsync:
		return opts.Lipsync
	default:
		return false
	}
}

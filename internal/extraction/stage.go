package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/services"
	"veriscope/internal/stage"
	"veriscope/internal/staging"
)

// Stage renders frames and audio into the job workspace ahead of inference.
type Stage struct {
	cfg       *config.Config
	store     *jobs.Store
	extractor *Extractor
	logger    *slog.Logger
}

// NewStage constructs the extraction pipeline stage.
func NewStage(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:       cfg,
		store:     store,
		extractor: NewExtractor(cfg.FFmpegBinary()),
		logger:    logging.NewComponentLogger(logger, "extraction"),
	}
}

// SetRunner substitutes the command runner, for tests.
func (s *Stage) SetRunner(runner CommandRunner) {
	s.extractor.Runner = runner
}

// Prepare primes job progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "extraction", "prepare", "Extraction stage is not configured", nil)
	}
	job.BeginStage("Extracting", "Preparing frame and audio extraction")
	return s.store.UpdateProgress(ctx, job)
}

// Execute samples frames and renders the normalized audio track, running
// both ffmpeg passes concurrently. Media without a video or audio stream
// simply skips that half; downstream modalities see the gap as neutral.
func (s *Stage) Execute(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "extraction", "execute", "Extraction stage is not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	results, err := job.Results()
	if err != nil {
		return services.Wrap(services.ErrState, "extraction", "decode results", "", err)
	}
	if results.Extraction != nil {
		logger.Debug("extraction result already recorded; skipping")
		return nil
	}
	if results.Metadata == nil {
		return services.Wrap(services.ErrInput, "extraction", "execute", "Validation metadata missing; cannot extract", nil)
	}

	media, err := s.store.GetMedia(ctx, job.MediaID)
	if err != nil {
		return err
	}

	workspace := staging.WorkspaceFor(s.cfg.Paths.StagingDir, job.ID)
	if err := workspace.Ensure(); err != nil {
		return services.Wrap(services.ErrTransient, "extraction", "ensure workspace", "", err)
	}

	summary := &jobs.ExtractionSummary{FPS: float64(s.cfg.Extraction.FPS)}
	group, groupCtx := errgroup.WithContext(ctx)

	if results.Metadata.HasVideo {
		framesDir := workspace.FramesDir()
		group.Go(func() error {
			count, err := s.extractor.ExtractFrames(groupCtx, media.StoragePath, s.cfg.Extraction.FPS, framesDir)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "extraction", "extract frames", "", err)
			}
			summary.FrameCount = count
			summary.FramesDir = framesDir
			return nil
		})
	}
	if results.Metadata.HasAudio {
		audioPath := workspace.AudioPath()
		group.Go(func() error {
			if err := s.extractor.ExtractAudio(groupCtx, media.StoragePath, audioPath); err != nil {
				return services.Wrap(services.ErrExternalTool, "extraction", "extract audio", "", err)
			}
			summary.AudioPath = audioPath
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	updated, err := s.store.AppendResult(ctx, job.ID, jobs.ResultExtraction, summary)
	if err != nil {
		return err
	}
	job.ResultsJSON = updated.ResultsJSON
	job.ProgressMessage = fmt.Sprintf("Extracted %d frames", summary.FrameCount)

	logger.Info("extraction complete",
		logging.Int("frames", summary.FrameCount),
		logging.Bool("audio", summary.AudioPath != ""),
		logging.String("workspace", workspace.Root),
	)
	return nil
}

// HealthCheck reports extraction stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "extraction"
	if s == nil || s.cfg == nil || s.store == nil {
		return stage.Unhealthy(name, "extraction stage is not configured")
	}
	if s.cfg.Extraction.FPS <= 0 {
		return stage.Unhealthy(name, "sampling rate must be positive")
	}
	return stage.Healthy(name)
}

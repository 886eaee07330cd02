package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/services"
	"veriscope/internal/stage"
	"veriscope/internal/staging"
)

// lookPath allows tests to control binary resolution.
var lookPath = exec.LookPath

// Stage transcribes the extracted audio track ahead of lipsync analysis.
type Stage struct {
	cfg         *config.Config
	store       *jobs.Store
	transcriber *Transcriber
	logger      *slog.Logger
}

// NewStage constructs the transcription pipeline stage.
func NewStage(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:         cfg,
		store:       store,
		transcriber: NewTranscriber(cfg.Transcription.Binary, cfg.Transcription.Model),
		logger:      logging.NewComponentLogger(logger, "transcription"),
	}
}

// SetRunner substitutes the command runner, for tests.
func (s *Stage) SetRunner(runner CommandRunner) {
	s.transcriber.Runner = runner
}

// Prepare primes job progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "transcription", "prepare", "Transcription stage is not configured", nil)
	}
	job.BeginStage("Transcribing", "Preparing transcription")
	return s.store.UpdateProgress(ctx, job)
}

// Execute transcribes the audio track. A disabled engine, a missing binary,
// or media without audio all degrade to an empty skipped transcript; only a
// present engine that fails is an error, and a retryable one.
func (s *Stage) Execute(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "transcription", "execute", "Transcription stage is not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	results, err := job.Results()
	if err != nil {
		return services.Wrap(services.ErrState, "transcription", "decode results", "", err)
	}
	if results.Transcript != nil {
		logger.Debug("transcript already recorded; skipping")
		return nil
	}

	if skip, reason := s.skipReason(results); skip {
		logger.Info("transcription skipped", logging.String("reason", reason))
		return s.merge(ctx, job, &jobs.TranscriptSummary{Skipped: true, Reason: reason})
	}

	workspace := staging.WorkspaceFor(s.cfg.Paths.StagingDir, job.ID)
	summary, err := s.transcriber.Transcribe(ctx, results.Extraction.AudioPath, workspace.TranscriptDir())
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcription", "transcribe", "", err)
	}

	if err := s.merge(ctx, job, summary); err != nil {
		return err
	}
	job.ProgressMessage = fmt.Sprintf("Transcribed %d words", summary.WordCount)
	logger.Info("transcription complete",
		logging.Int("words", summary.WordCount),
		logging.String("language", summary.Language),
	)
	return nil
}

func (s *Stage) skipReason(results jobs.Results) (bool, string) {
	if !s.cfg.Transcription.Enabled {
		return true, "transcription disabled"
	}
	if results.Extraction == nil || results.Extraction.AudioPath == "" {
		return true, "no audio stream"
	}
	if _, err := lookPath(s.cfg.Transcription.Binary); err != nil {
		return true, fmt.Sprintf("transcription engine %q not installed", s.cfg.Transcription.Binary)
	}
	return false, ""
}

func (s *Stage) merge(ctx context.Context, job *jobs.Job, summary *jobs.TranscriptSummary) error {
	updated, err := s.store.AppendResult(ctx, job.ID, jobs.ResultTranscript, summary)
	if err != nil {
		return err
	}
	job.ResultsJSON = updated.ResultsJSON
	return nil
}

// HealthCheck reports transcription stage readiness. A missing engine is
// still healthy because the stage degrades instead of failing.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcription"
	if s == nil || s.cfg == nil || s.store == nil {
		return stage.Unhealthy(name, "transcription stage is not configured")
	}
	return stage.Healthy(name)
}

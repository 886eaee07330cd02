package fusion

import (
	"context"
	"errors"
	"log/slog"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
	"veriscope/internal/stage"
)

// Stage integrates the fusion engine with the pipeline manager.
type Stage struct {
	store  *jobs.Store
	engine *Engine
	logger *slog.Logger
}

// NewStage constructs the fusion pipeline stage. Weight validation happens
// here so a bad fusion section fails configuration, not the first verdict.
func NewStage(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Stage, error) {
	engine, err := NewEngine(WeightsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &Stage{
		store:  store,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "fusion"),
	}, nil
}

// Prepare primes job progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "fusion", "prepare", "fusion stage is not configured", nil)
	}
	job.BeginStage("Fusing", "Combining modality scores")
	return s.store.UpdateProgress(ctx, job)
}

// Execute fuses the present modality outcomes and records the verdict.
func (s *Stage) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	results, err := job.Results()
	if err != nil {
		return services.Wrap(services.ErrState, "fusion", "decode results", "", err)
	}
	if results.Fusion != nil {
		// A previous attempt finished fusion before crashing; nothing to redo.
		logger.Debug("fusion result already recorded; skipping")
		return nil
	}

	samples := make(map[scoring.Modality]Sample)
	for _, modality := range scoring.Modalities() {
		outcome := results.Modality(modality)
		if outcome == nil || outcome.Skipped {
			continue
		}
		samples[modality] = Sample{Score: outcome.Score, Confidence: outcome.Confidence}
	}
	if len(samples) == 0 {
		return services.Wrap(services.ErrState, "fusion", "collect samples", "no modality produced a score", nil)
	}

	verdict, err := s.engine.Fuse(samples)
	if err != nil {
		return err
	}

	if err := s.store.SetVerdict(ctx, job.ID, verdict.Score, verdict.Label); err != nil {
		// A crash after SetVerdict but before the result merge leaves the
		// verdict recorded; tolerate that on resume.
		if !errors.Is(err, services.ErrState) {
			return err
		}
		logger.Debug("verdict already recorded; resuming result merge")
	} else {
		score := verdict.Score
		job.OverallScore = &score
		job.Label = verdict.Label
	}

	outcome := &jobs.FusionOutcome{
		Score:       verdict.Score,
		Label:       verdict.Label,
		Confidence:  verdict.Confidence,
		Agreement:   verdict.Agreement,
		Description: verdict.Description,
		Concerns:    verdict.Concerns,
		Weights:     verdict.Weights.Map(),
	}
	updated, err := s.store.AppendResult(ctx, job.ID, jobs.ResultFusion, outcome)
	if err != nil {
		return err
	}
	job.ResultsJSON = updated.ResultsJSON
	job.OverallScore = updated.OverallScore
	job.Label = updated.Label

	job.ProgressMessage = "Verdict " + string(verdict.Label)
	logger.Info("fusion complete",
		logging.Float64("score", verdict.Score),
		logging.String("label", string(verdict.Label)),
		logging.Float64("agreement", verdict.Agreement),
		logging.Int("modalities", len(samples)),
	)
	return nil
}

// HealthCheck reports fusion stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "fusion"
	if s == nil || s.store == nil || s.engine == nil {
		return stage.Unhealthy(name, "fusion stage is not configured")
	}
	if err := s.engine.Weights().Validate(); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

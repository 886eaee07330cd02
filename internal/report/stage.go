package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/services"
	"veriscope/internal/stage"
	"veriscope/internal/staging"
)

// Stage is the final pipeline stage: it assembles the report document,
// submits it to the sink, and cleans the staging workspace.
type Stage struct {
	cfg    *config.Config
	store  *jobs.Store
	sink   Sink
	logger *slog.Logger
}

// NewStage constructs the report pipeline stage with the default store sink.
func NewStage(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:    cfg,
		store:  store,
		sink:   NewStoreSink(store, cfg.Paths.ReportsDir),
		logger: logging.NewComponentLogger(logger, "report"),
	}
}

// SetSink substitutes the report sink, for tests.
func (s *Stage) SetSink(sink Sink) {
	s.sink = sink
}

// Prepare primes job progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "report", "prepare", "Report stage is not configured", nil)
	}
	job.BeginStage("Reporting", "Assembling analysis report")
	return s.store.UpdateProgress(ctx, job)
}

// Execute builds and submits the report. A job that already has a report row
// only repeats the workspace cleanup, so a crashed run can resume safely.
func (s *Stage) Execute(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "report", "execute", "Report stage is not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	existing, err := s.store.GetReportByJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Debug("report already recorded; skipping")
		return s.cleanup(ctx, job, logger)
	}

	results, err := job.Results()
	if err != nil {
		return services.Wrap(services.ErrState, "report", "decode results", "", err)
	}
	item, err := s.store.GetMedia(ctx, job.MediaID)
	if err != nil {
		return err
	}
	segments, err := s.store.SegmentsForJob(ctx, job.ID)
	if err != nil {
		return err
	}

	summary, err := BuildSummary(job, item, results, segments)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return services.Wrap(services.ErrState, "report", "encode summary", "", err)
	}

	rpt := &jobs.Report{JobID: job.ID, SummaryJSON: string(payload)}
	if err := s.sink.Submit(ctx, rpt); err != nil {
		return err
	}

	job.ProgressMessage = "Report ready"
	logger.Info("report submitted",
		logging.String("label", string(summary.Verdict.Label)),
		logging.Float64("score", summary.Verdict.OverallScore),
		logging.String("artifact", rpt.ArtifactPath),
	)
	return s.cleanup(ctx, job, logger)
}

// cleanup removes the staging workspace unless the job asked to retain it.
func (s *Stage) cleanup(ctx context.Context, job *jobs.Job, logger *slog.Logger) error {
	opts, err := job.Options()
	if err != nil {
		return services.Wrap(services.ErrState, "report", "decode options", "", err)
	}
	if opts.RetainArtifacts {
		logger.Debug("retaining staging workspace")
		return nil
	}
	workspace := staging.WorkspaceFor(s.cfg.Paths.StagingDir, job.ID)
	if !workspace.Exists() {
		return nil
	}
	if err := workspace.Remove(); err != nil {
		logger.Warn("staging cleanup failed", logging.Error(err))
	}
	return nil
}

// HealthCheck reports report stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "report"
	if s == nil || s.cfg == nil || s.store == nil {
		return stage.Unhealthy(name, "report stage is not configured")
	}
	// The sink creates the reports dir on demand; only a non-directory in
	// its place is a real problem.
	if dir := s.cfg.Paths.ReportsDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			return stage.Unhealthy(name, "reports path exists but is not a directory")
		}
	}
	return stage.Healthy(name)
}

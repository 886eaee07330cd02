package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/services"
)

// runJob drives one claimed job toward a terminal status. It returns when
// the job completes, fails, loses a status race, or the context ends.
func (m *Manager) runJob(ctx context.Context, owner string, workerLogger *slog.Logger, jobID int64) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := m.store.GetByID(ctx, jobID)
		if err != nil {
			m.setLastError(err)
			workerLogger.Error("failed to reload job", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
			return
		}
		if job == nil || jobs.IsTerminal(job.Status) {
			return
		}

		if job.Status == jobs.StatusPending {
			if _, err := m.store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusValidating); err != nil {
				m.observeAdvanceFailure(ctx, workerLogger, job.ID, err)
				return
			}
			continue
		}

		stg, ok := m.stageForStatus(job.Status)
		if !ok {
			workerLogger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
			return
		}

		jobCtx := services.WithJobID(ctx, job.ID)
		jobCtx = services.WithStage(jobCtx, stg.name)
		jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
		stageLogger := logging.WithContext(jobCtx, workerLogger)

		if err := m.runStage(jobCtx, owner, stageLogger, stg, job); err != nil {
			if errors.Is(err, context.Canceled) {
				stageLogger.Debug("stage interrupted by shutdown")
				return
			}
			m.setLastError(err)
			m.failJob(ctx, stageLogger, stg.name, job, err)
			return
		}

		next, ok := jobs.NextStage(job.Status)
		if !ok {
			return
		}
		job.SetProgress(job.ProgressStage, job.ProgressMessage, stg.band)
		if err := m.store.UpdateProgress(ctx, job); err != nil {
			m.setLastError(err)
			stageLogger.Error("failed to persist stage progress", logging.Error(err))
			return
		}
		advanced, err := m.store.Advance(ctx, job.ID, job.Status, next)
		if err != nil {
			m.observeAdvanceFailure(ctx, stageLogger, job.ID, err)
			return
		}
		if advanced.Status == jobs.StatusDone {
			m.onJobCompleted(ctx, stageLogger, advanced)
			return
		}
	}
}

// runStage executes one stage with bounded retry. Only errors classified as
// transient are retried; input, integrity, and state errors fail immediately.
func (m *Manager) runStage(ctx context.Context, owner string, logger *slog.Logger, stg pipelineStage, job *jobs.Job) error {
	var lastErr error
	for attempt := 1; attempt <= m.stageAttempts; attempt++ {
		lastErr = m.executeStage(ctx, owner, logger, stg, job)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		if !services.IsTransient(lastErr) || attempt == m.stageAttempts {
			return lastErr
		}
		logger.Warn("stage attempt failed; retrying",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", m.stageAttempts),
			logging.Error(lastErr),
		)
		m.sleep(ctx, m.stageRetryDelay*time.Duration(attempt))
	}
	return lastErr
}

func (m *Manager) executeStage(ctx context.Context, owner string, logger *slog.Logger, stg pipelineStage, job *jobs.Job) error {
	if stg.handler == nil {
		return services.Wrap(services.ErrConfiguration, stg.name, "execute", "stage handler unavailable", nil)
	}

	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if m.stageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, m.stageTimeout)
	}
	defer cancel()

	stageStart := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := stg.handler.Prepare(stageCtx, job); err != nil {
		return m.classifyStageContext(stageCtx, stg.name, err)
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		m.heartbeatLoop(hbCtx, logger, job.ID, owner)
	}()

	execErr := stg.handler.Execute(stageCtx, job)
	hbCancel()
	hbWG.Wait()

	if execErr != nil {
		return m.classifyStageContext(stageCtx, stg.name, execErr)
	}

	if err := m.store.UpdateProgress(ctx, job); err != nil {
		return services.Wrap(services.ErrTransient, stg.name, "persist stage result", "", err)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("progress_message", strings.TrimSpace(job.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// classifyStageContext upgrades a deadline hit to a timeout error so the
// retry policy treats a hung external tool as transient.
func (m *Manager) classifyStageContext(stageCtx context.Context, stageName string, err error) error {
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, "execute", "stage timed out", err)
	}
	return err
}

// observeAdvanceFailure distinguishes an asynchronously failed job (user
// stop or watchdog) from a genuine status race. Both end this worker's run.
func (m *Manager) observeAdvanceFailure(ctx context.Context, logger *slog.Logger, jobID int64, advErr error) {
	if errors.Is(advErr, context.Canceled) {
		return
	}
	current, err := m.store.GetByID(ctx, jobID)
	if err == nil && current != nil && current.Status == jobs.StatusFailed {
		logger.Info("job failed asynchronously; abandoning run", logging.Int64(logging.FieldJobID, jobID))
		return
	}
	m.setLastError(advErr)
	logger.Error("stage advance lost status race",
		logging.Int64(logging.FieldJobID, jobID),
		logging.Error(advErr),
		logging.String(logging.FieldEventType, "advance_conflict"),
	)
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, stageName string, job *jobs.Job, stageErr error) {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = stageName + " failed without error detail"
	}

	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldEventType, "stage_failure"),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	persistCtx := context.WithoutCancel(ctx)
	if _, err := m.store.MarkFailed(persistCtx, job.ID, message); err != nil {
		if !errors.Is(err, services.ErrState) {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}

	filename := m.mediaFilename(persistCtx, job.MediaID)
	if err := m.notifier.NotifyJobFailed(persistCtx, filename, message); err != nil {
		logger.Warn("failure notification not delivered", logging.Error(err))
	}
}

func (m *Manager) onJobCompleted(ctx context.Context, logger *slog.Logger, job *jobs.Job) {
	score := 0.0
	if job.OverallScore != nil {
		score = *job.OverallScore
	}
	logger.Info("job completed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("label", string(job.Label)),
		logging.Float64("score", score),
		logging.String(logging.FieldEventType, "job_complete"),
	)

	filename := m.mediaFilename(ctx, job.MediaID)
	if err := m.notifier.NotifyJobCompleted(ctx, filename, string(job.Label), score); err != nil {
		logger.Warn("completion notification not delivered", logging.Error(err))
	}
}

func (m *Manager) mediaFilename(ctx context.Context, mediaID string) string {
	item, err := m.store.GetMedia(ctx, mediaID)
	if err != nil || item == nil {
		return mediaID
	}
	return item.OriginalFilename
}

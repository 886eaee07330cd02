package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veriscope/internal/logging"
	"veriscope/internal/services"
)

func (m *Manager) runWorker(ctx context.Context, owner string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldWorker, owner))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNext(ctx, owner, m.claimableStatuses()...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check jobs database access"),
			)
			m.sleep(ctx, m.errorRetryInterval)
			continue
		}
		if job == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		workerCtx := services.WithWorker(ctx, owner)
		m.runJob(workerCtx, owner, logger, job.ID)

		if err := m.store.ReleaseLease(context.WithoutCancel(ctx), job.ID, owner); err != nil {
			logger.Warn("failed to release lease",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
		}
	}
}

// runReclaimMonitor periodically clears leases whose heartbeat has gone
// stale so jobs orphaned by a crashed worker become claimable again.
func (m *Manager) runReclaimMonitor(ctx context.Context) {
	defer m.wg.Done()
	if m.heartbeatTimeout <= 0 {
		return
	}

	interval := m.heartbeatInterval
	if interval <= 0 {
		interval = m.heartbeatTimeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := logging.NewComponentLogger(m.logger, "pipeline-reclaim")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-m.heartbeatTimeout)
			reclaimed, err := m.store.ReclaimStale(ctx, cutoff)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("reclaim stale leases failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "lease_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check jobs database access"),
				)
				continue
			}
			if reclaimed > 0 {
				logger.Info("reclaimed stale job leases", logging.Int64("count", reclaimed))
			}
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (m *Manager) heartbeatLoop(ctx context.Context, logger *slog.Logger, jobID int64, owner string) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.Heartbeat(ctx, jobID, owner); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

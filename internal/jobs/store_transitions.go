package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"veriscope/internal/services"
)

const claimAttempts = 3

// Advance moves a job to the next stage with a compare-and-set on the current
// status. Stage and status both take the new value, so a running job always
// shows status == stage. Failures are recorded through MarkFailed instead.
func (s *Store) Advance(ctx context.Context, id int64, from, to Status) (*Job, error) {
	if to == StatusFailed {
		return nil, fmt.Errorf("%w: failures are recorded through MarkFailed", services.ErrState)
	}
	if err := ValidateTransition(from, to); err != nil {
		return nil, err
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET stage = ?, status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		to,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		from,
	)
	if err != nil {
		return nil, fmt.Errorf("advance job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, fmt.Errorf("%w: job %d", services.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: job %d is %s, expected %s", services.ErrState, id, current.Status, from)
	}
	return s.GetByID(ctx, id)
}

// MarkFailed records a failure, keeping stage and progress frozen at their
// last values so operators can see how far the job got. Terminal jobs are
// rejected with a state error.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, progress_message = ?,
             lease_owner = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusFailed,
		nullableString(message),
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusDone,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, fmt.Errorf("%w: job %d", services.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: job %d is already %s", services.ErrState, id, current.Status)
	}
	return s.GetByID(ctx, id)
}

// ClaimNext leases the oldest runnable job for a worker. A job is runnable
// when its status matches one of the provided statuses and no other worker
// holds its lease. Returns nil when nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, owner string, statuses ...Status) (*Job, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: lease owner is required", services.ErrInput)
	}
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := makePlaceholders(len(statuses))
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + placeholders + `) AND lease_owner IS NULL ORDER BY created_at LIMIT 1`
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	for attempt := 0; attempt < claimAttempts; attempt++ {
		row := s.db.QueryRowContext(ensureContext(ctx), query, args...)
		candidate, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find claimable job: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET lease_owner = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND lease_owner IS NULL AND status = ?`,
			owner,
			now,
			now,
			candidate.ID,
			candidate.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 1 {
			return s.GetByID(ctx, candidate.ID)
		}
		// Another worker won the race; look again.
	}
	return nil, nil
}

// Heartbeat refreshes the lease timestamp for an in-flight job. The write is
// scoped to the owner so a reclaimed job cannot be resurrected by its old
// worker.
func (s *Store) Heartbeat(ctx context.Context, id int64, owner string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND lease_owner = ?`,
		now,
		now,
		id,
		owner,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %d lease not held by %s", services.ErrState, id, owner)
	}
	return nil
}

// ReleaseLease clears a worker's lease once it is finished with a job. A
// lease already reclaimed by the monitor makes this a no-op.
func (s *Store) ReleaseLease(ctx context.Context, id int64, owner string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET lease_owner = NULL, last_heartbeat = NULL, updated_at = ? WHERE id = ? AND lease_owner = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		owner,
	); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// ReclaimStale frees leases whose heartbeats expired before the cutoff. The
// jobs keep their stage and status, so the next claim resumes them where the
// dead worker left off.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	active := ActiveStatuses()
	placeholders := makePlaceholders(len(active))
	args := make([]any, 0, len(active)+2)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	for _, status := range active {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	query := `UPDATE jobs
        SET lease_owner = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + placeholders + `) AND lease_owner IS NOT NULL
          AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed queues a fresh pending job for the media behind each failed
// job, carrying the failed job's submission options forward. The failed rows
// stay untouched so their error messages remain queryable. Media that already
// has a live job is skipped, and with no ids every failed job is considered.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ?`
	args := []any{StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query failed jobs: %w", err)
	}
	defer rows.Close()

	var failed []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return 0, fmt.Errorf("scan failed job: %w", err)
		}
		failed = append(failed, job)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate failed jobs: %w", err)
	}

	seen := make(map[string]struct{}, len(failed))
	var queued int64
	for _, prior := range failed {
		if _, dup := seen[prior.MediaID]; dup {
			continue
		}
		seen[prior.MediaID] = struct{}{}

		opts, err := prior.Options()
		if err != nil {
			return queued, fmt.Errorf("job %d options: %w", prior.ID, err)
		}
		_, created, err := s.NewJob(ctx, prior.MediaID, opts)
		if err != nil {
			return queued, err
		}
		if created {
			queued++
		}
	}
	return queued, nil
}

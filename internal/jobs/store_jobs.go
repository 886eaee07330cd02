package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"veriscope/internal/scoring"
	"veriscope/internal/services"
)

// NewJob inserts a pending job for a registered media item. When the media
// already has a live job the existing one is returned instead and the second
// return is false. A unique index backs this, so concurrent submissions of
// the same file converge on a single job.
func (s *Store) NewJob(ctx context.Context, mediaID string, opts Options) (*Job, bool, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return nil, false, fmt.Errorf("%w: media id is required", services.ErrInput)
	}

	if existing, err := s.FindActiveByMedia(ctx, mediaID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	optionsJSON, err := opts.Encode()
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            media_id, stage, status, progress, options_json, results_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mediaID,
		StatusPending,
		StatusPending,
		0.0,
		optionsJSON,
		"{}",
		timestamp,
		timestamp,
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			// Lost a race with a concurrent submission for the same media.
			existing, findErr := s.FindActiveByMedia(ctx, mediaID)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindActiveByMedia returns the live job for a media item, or nil when every
// job for it has already finished or failed.
func (s *Store) FindActiveByMedia(ctx context.Context, mediaID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE media_id = ? AND status NOT IN (?, ?) ORDER BY id LIMIT 1`,
		mediaID,
		StatusDone,
		StatusFailed,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return job, nil
}

// JobsByMedia returns every job ever run for a media item, oldest first.
func (s *Store) JobsByMedia(ctx context.Context, mediaID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE media_id = ? ORDER BY created_at`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("query jobs by media: %w", err)
	}
	defer rows.Close()

	var items []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

// Update persists lifecycle changes to an existing job. Options, results,
// and the verdict are written by their dedicated methods and left untouched
// here, so a stale in-memory copy cannot clobber them.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET stage = ?, status = ?, progress = ?, progress_stage = ?, progress_message = ?,
             error_message = ?, lease_owner = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		job.Stage,
		job.Status,
		job.Progress,
		nullableString(job.ProgressStage),
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		nullableString(job.LeaseOwner),
		nullableTime(job.LastHeartbeat),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fields, preserving lease and
// heartbeat so a concurrent heartbeat write is not lost.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET progress = ?, progress_stage = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		job.Progress,
		nullableString(job.ProgressStage),
		nullableString(job.ProgressMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var items []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

// AppendResult writes one stage's output into the job results document. Each
// key is writable once; a second write fails with a state error, which lets a
// resumed job detect stages that already completed.
func (s *Store) AppendResult(ctx context.Context, jobID int64, key ResultKey, payload any) (*Job, error) {
	ctx = ensureContext(ctx)
	if err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin results tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var resultsRaw sql.NullString
		row := tx.QueryRowContext(ctx, `SELECT results_json FROM jobs WHERE id = ?`, jobID)
		if err := row.Scan(&resultsRaw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: job %d", services.ErrNotFound, jobID)
			}
			return fmt.Errorf("read results: %w", err)
		}

		results, err := DecodeResults(resultsRaw.String)
		if err != nil {
			return err
		}
		if results.Has(key) {
			return fmt.Errorf("%w: job %d already has %s result", services.ErrState, jobID, key)
		}
		if err := results.attach(key, payload); err != nil {
			return fmt.Errorf("%w: %v", services.ErrInput, err)
		}

		encoded, err := results.Encode()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE jobs SET results_json = ?, updated_at = ? WHERE id = ?`,
			encoded,
			time.Now().UTC().Format(time.RFC3339Nano),
			jobID,
		); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		return tx.Commit()
	}); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, jobID)
}

// SetVerdict records the fused score and label. A job's verdict is written
// exactly once; later attempts fail with a state error.
func (s *Store) SetVerdict(ctx context.Context, id int64, score float64, label scoring.Label) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: overall score %.4f outside [0, 1]", services.ErrInput, score)
	}
	if _, ok := scoring.ParseLabel(string(label)); !ok {
		return fmt.Errorf("%w: unknown label %q", services.ErrInput, label)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET overall_score = ?, label = ?, updated_at = ? WHERE id = ? AND overall_score IS NULL`,
		score,
		string(label),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set verdict: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if current == nil {
			return fmt.Errorf("%w: job %d", services.ErrNotFound, id)
		}
		return fmt.Errorf("%w: verdict already recorded for job %d", services.ErrState, id)
	}
	return nil
}

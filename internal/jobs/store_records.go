package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"veriscope/internal/services"
)

// AddSegments persists flagged time ranges for a job in one batch. Ranges
// must be well formed: start strictly before end.
func (s *Store) AddSegments(ctx context.Context, jobID int64, segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}
	for _, segment := range segments {
		if segment.StartMs >= segment.EndMs {
			return fmt.Errorf("%w: segment start %dms not before end %dms", services.ErrInput, segment.StartMs, segment.EndMs)
		}
	}

	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin segments tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, segment := range segments {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO segments (job_id, modality, start_ms, end_ms, score, confidence, description, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				jobID,
				string(segment.Modality),
				segment.StartMs,
				segment.EndMs,
				segment.Score,
				segment.Confidence,
				segment.Description,
				now,
			); err != nil {
				return fmt.Errorf("insert segment: %w", err)
			}
		}
		return tx.Commit()
	})
}

// SegmentsForJob returns a job's flagged ranges ordered by start time.
func (s *Store) SegmentsForJob(ctx context.Context, jobID int64) ([]*Segment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE job_id = ? ORDER BY start_ms, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

// RecordModelRun appends an audit row for one model invocation and fills in
// the assigned identifier.
func (s *Store) RecordModelRun(ctx context.Context, run *ModelRun) error {
	if run == nil {
		return errors.New("model run is nil")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO model_runs (job_id, modality, model_name, model_version, score, confidence, inference_time_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID,
		string(run.Modality),
		run.ModelName,
		run.ModelVersion,
		nullableFloat(run.Score),
		nullableFloat(run.Confidence),
		run.InferenceTimeMs,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert model run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	run.ID = id
	run.CreatedAt = now
	return nil
}

// ModelRunsForJob returns a job's model invocations in execution order.
func (s *Store) ModelRunsForJob(ctx context.Context, jobID int64) ([]*ModelRun, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runColumns+` FROM model_runs WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query model runs: %w", err)
	}
	defer rows.Close()

	var runs []*ModelRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveReport persists a job's verdict document. Each job gets exactly one
// report; saving a second fails with a state error.
func (s *Store) SaveReport(ctx context.Context, report *Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO reports (job_id, summary_json, artifact_path, created_at) VALUES (?, ?, ?, ?)`,
		report.JobID,
		report.SummaryJSON,
		nullableString(report.ArtifactPath),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: report already recorded for job %d", services.ErrState, report.JobID)
		}
		return fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	report.ID = id
	report.CreatedAt = now
	return nil
}

// GetReportByJob fetches the report for a job, or nil when none exists yet.
func (s *Store) GetReportByJob(ctx context.Context, jobID int64) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE job_id = ?`, jobID)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

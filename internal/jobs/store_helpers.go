package jobs

import (
	"database/sql"
	"errors"
	"time"

	"veriscope/internal/scoring"
)

const jobColumns = "id, media_id, stage, status, progress, progress_stage, progress_message, options_json, results_json, overall_score, label, error_message, lease_owner, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		mediaID          string
		stageStr         string
		statusStr        string
		progress         sql.NullFloat64
		progressStage    sql.NullString
		progressMessage  sql.NullString
		optionsJSON      sql.NullString
		resultsJSON      sql.NullString
		overallScore     sql.NullFloat64
		label            sql.NullString
		errorMessage     sql.NullString
		leaseOwner       sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&mediaID,
		&stageStr,
		&statusStr,
		&progress,
		&progressStage,
		&progressMessage,
		&optionsJSON,
		&resultsJSON,
		&overallScore,
		&label,
		&errorMessage,
		&leaseOwner,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		MediaID:         mediaID,
		Stage:           Status(stageStr),
		Status:          Status(statusStr),
		Progress:        progress.Float64,
		ProgressStage:   progressStage.String,
		ProgressMessage: progressMessage.String,
		OptionsJSON:     optionsJSON.String,
		ResultsJSON:     resultsJSON.String,
		Label:           scoring.Label(label.String),
		ErrorMessage:    errorMessage.String,
		LeaseOwner:      leaseOwner.String,
	}
	if overallScore.Valid {
		score := overallScore.Float64
		job.OverallScore = &score
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

const mediaColumns = "id, filename, original_filename, sha256, file_size, media_type, mime_type, duration_ms, storage_path, created_at"

func scanMedia(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		id         string
		filename   string
		original   string
		sha256     string
		fileSize   int64
		mediaType  string
		mimeType   sql.NullString
		durationMs sql.NullInt64
		storage    string
		createdRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&filename,
		&original,
		&sha256,
		&fileSize,
		&mediaType,
		&mimeType,
		&durationMs,
		&storage,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	item := &MediaItem{
		ID:               id,
		Filename:         filename,
		OriginalFilename: original,
		SHA256:           sha256,
		FileSize:         fileSize,
		MediaType:        MediaType(mediaType),
		MimeType:         mimeType.String,
		StoragePath:      storage,
	}
	if durationMs.Valid {
		duration := durationMs.Int64
		item.DurationMs = &duration
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	return item, nil
}

const segmentColumns = "id, job_id, modality, start_ms, end_ms, score, confidence, description, created_at"

func scanSegment(scanner interface{ Scan(dest ...any) error }) (*Segment, error) {
	var (
		id          int64
		jobID       int64
		modality    string
		startMs     int64
		endMs       int64
		score       float64
		confidence  float64
		description sql.NullString
		createdRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&modality,
		&startMs,
		&endMs,
		&score,
		&confidence,
		&description,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	segment := &Segment{
		ID:          id,
		JobID:       jobID,
		Modality:    scoring.Modality(modality),
		StartMs:     startMs,
		EndMs:       endMs,
		Score:       score,
		Confidence:  confidence,
		Description: description.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		segment.CreatedAt = created
	}
	return segment, nil
}

const runColumns = "id, job_id, modality, model_name, model_version, score, confidence, inference_time_ms, created_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*ModelRun, error) {
	var (
		id           int64
		jobID        int64
		modality     string
		modelName    string
		modelVersion string
		score        sql.NullFloat64
		confidence   sql.NullFloat64
		inferenceMs  int64
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&modality,
		&modelName,
		&modelVersion,
		&score,
		&confidence,
		&inferenceMs,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	run := &ModelRun{
		ID:              id,
		JobID:           jobID,
		Modality:        scoring.Modality(modality),
		ModelName:       modelName,
		ModelVersion:    modelVersion,
		InferenceTimeMs: inferenceMs,
	}
	if score.Valid {
		v := score.Float64
		run.Score = &v
	}
	if confidence.Valid {
		v := confidence.Float64
		run.Confidence = &v
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	return run, nil
}

const reportColumns = "id, job_id, summary_json, artifact_path, created_at"

func scanReport(scanner interface{ Scan(dest ...any) error }) (*Report, error) {
	var (
		id           int64
		jobID        int64
		summaryJSON  string
		artifactPath sql.NullString
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(&id, &jobID, &summaryJSON, &artifactPath, &createdRaw); err != nil {
		return nil, err
	}

	report := &Report{
		ID:           id,
		JobID:        jobID,
		SummaryJSON:  summaryJSON,
		ArtifactPath: artifactPath.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		report.CreatedAt = created
	}
	return report, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

package jobs

import (
	"strings"
	"time"

	"veriscope/internal/scoring"
)

// Status represents the lifecycle of an analysis job. The stage field uses
// the same values but never holds StatusFailed: stage records the last stage
// a worker attempted, while status mirrors it during processing and diverges
// to StatusFailed when an attempt gives up.
type Status string

const (
	StatusPending      Status = "pending"
	StatusValidating   Status = "validating"
	StatusExtracting   Status = "extracting"
	StatusTranscribing Status = "transcribing"
	StatusInferVideo   Status = "infer_video"
	StatusInferAudio   Status = "infer_audio"
	StatusLipsync      Status = "lipsync"
	StatusFusion       Status = "fusion"
	StatusReport       Status = "report"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

// UserStopReason is the error message set when a user explicitly stops a job.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusValidating,
	StatusExtracting,
	StatusTranscribing,
	StatusInferVideo,
	StatusInferAudio,
	StatusLipsync,
	StatusFusion,
	StatusReport,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusValidating:   {},
	StatusExtracting:   {},
	StatusTranscribing: {},
	StatusInferVideo:   {},
	StatusInferAudio:   {},
	StatusLipsync:      {},
	StatusFusion:       {},
	StatusReport:       {},
}

// MediaType distinguishes audio-only submissions from full video.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// ParseMediaType converts a string into a known MediaType.
func ParseMediaType(value string) (MediaType, bool) {
	normalized := MediaType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MediaVideo, MediaAudio:
		return normalized, true
	default:
		return "", false
	}
}

// MediaItem is a registered media file. Files are deduplicated by SHA-256,
// so resubmitting the same bytes reuses the existing row.
type MediaItem struct {
	ID               string
	Filename         string
	OriginalFilename string
	SHA256           string
	FileSize         int64
	MediaType        MediaType
	MimeType         string
	DurationMs       *int64
	StoragePath      string
	CreatedAt        time.Time
}

// Job is an analysis run over a single media item persisted in SQLite.
type Job struct {
	ID              int64
	MediaID         string
	Stage           Status
	Status          Status
	Progress        float64
	ProgressStage   string
	ProgressMessage string
	OptionsJSON     string
	ResultsJSON     string
	OverallScore    *float64
	Label           scoring.Label
	ErrorMessage    string
	LeaseOwner      string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Options selects which analysis passes run for a job. Options are fixed at
// submission time; the store never rewrites them.
type Options struct {
	Video           bool `json:"video"`
	Audio           bool `json:"audio"`
	Lipsync         bool `json:"lipsync"`
	RetainArtifacts bool `json:"retainArtifacts"`
}

// DefaultOptions enables every analysis pass and discards artifacts.
func DefaultOptions() Options {
	return Options{Video: true, Audio: true, Lipsync: true}
}

// Segment is a flagged time range produced by one modality.
type Segment struct {
	ID          int64
	JobID       int64
	Modality    scoring.Modality
	StartMs     int64
	EndMs       int64
	Score       float64
	Confidence  float64
	Description string
	CreatedAt   time.Time
}

// ModelRun records a single model invocation for audit purposes. A nil score
// means the stage ran but produced no verdict, for example when a modality
// was skipped for lack of input.
type ModelRun struct {
	ID              int64
	JobID           int64
	Modality        scoring.Modality
	ModelName       string
	ModelVersion    string
	Score           *float64
	Confidence      *float64
	InferenceTimeMs int64
	CreatedAt       time.Time
}

// Report is the persisted verdict document for a finished job.
type Report struct {
	ID           int64
	JobID        int64
	SummaryJSON  string
	ArtifactPath string
	CreatedAt    time.Time
}

// DatabaseHealth captures diagnostic information about the jobs database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Done       int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsUserStopReason reports whether an error message represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// BeginStage points the progress fields at a new stage without touching the
// progress value, which only moves forward over the life of a job.
func (j *Job) BeginStage(stage, message string) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ErrorMessage = ""
}

// SetProgress updates the progress fields. The fraction is clamped to [0, 1]
// and never moves backwards; retries and resumed jobs keep the highest value
// already reached.
func (j *Job) SetProgress(stage, message string, fraction float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction > j.Progress {
		j.Progress = fraction
	}
}

// SetFailed marks the job as failed with the given error message. Stage and
// progress are frozen at their last values so operators can see how far the
// job got; the lease and heartbeat are cleared.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.LeaseOwner = ""
	j.LastHeartbeat = nil
}

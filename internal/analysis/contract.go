package analysis

import (
	"context"

	"veriscope/internal/jobs"
	"veriscope/internal/scoring"
)

// FlagThreshold is the fixed per-unit score above which a unit is reported
// as a flagged range.
const FlagThreshold = 0.5

// Unit is one scoreable slice of media: an extracted frame, an audio window,
// or a word-aligned lipsync window.
type Unit struct {
	Index   int
	StartMs int64
	EndMs   int64
	Path    string // frame image path when the unit is a frame
	Word    string // spoken word when the unit is a lipsync window
}

// FrameRef locates one extracted frame on disk with its media timestamp.
type FrameRef struct {
	Index       int
	Path        string
	TimestampMs int64
}

// StageInputs bundles everything a modality service may draw on. Fields are
// filled from the media row, the job workspace, and earlier stage results;
// a service uses the subset it needs and ignores the rest.
type StageInputs struct {
	MediaPath  string
	Filename   string // original filename, feeds the simulated source bias
	SHA256     string // stable seed basis for deterministic scoring
	FramesDir  string
	Frames     []FrameRef
	AudioPath  string
	DurationMs int64
	Transcript *jobs.TranscriptSummary
}

// Input is the preprocessed form a service feeds its Predict step. Neutral
// marks a modality with nothing usable to score (audio-only media for video,
// a missing transcript for lipsync); downstream steps must still produce a
// bounded result for it rather than failing.
type Input struct {
	Units   []Unit
	Neutral bool
	Reason  string
}

// Raw carries per-unit scores out of Predict, index-aligned with Input.Units.
type Raw struct {
	Scores []float64
}

// FlaggedRange is a unit whose score exceeded FlagThreshold, ready to be
// persisted as an evidentiary segment.
type FlaggedRange struct {
	StartMs     int64
	EndMs       int64
	Score       float64
	Confidence  float64
	Description string
}

// Result is one modality's aggregated verdict.
type Result struct {
	Modality   scoring.Modality
	Score      float64
	Confidence float64
	Label      scoring.Label
	Flagged    []FlaggedRange
	UnitCount  int
	Neutral    bool
	Reason     string
	Run        jobs.ModelRun
}

// Service is the uniform modality contract. Implementations are stateless
// per call and safe for concurrent use across jobs.
type Service interface {
	Modality() scoring.Modality
	ModelName() string
	ModelVersion() string

	// Preprocess turns raw stage inputs into scoreable units. Required
	// inputs that are present but unreadable are an input error; inputs
	// that are legitimately absent yield a Neutral value instead.
	Preprocess(ctx context.Context, in StageInputs) (Input, error)

	// Predict produces one score in [0, 1] per unit, drawing on the score
	// source. A Neutral input yields an empty Raw, never an error.
	Predict(ctx context.Context, in StageInputs, pre Input) (Raw, error)

	// Postprocess aggregates unit scores into the modality result using
	// the service's documented deterministic rule.
	Postprocess(ctx context.Context, in Input, raw Raw) (Result, error)
}

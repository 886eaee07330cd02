package pipeline

import (
	"veriscope/internal/jobs"
	"veriscope/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Validation    stage.Handler
	Extraction    stage.Handler
	Transcription stage.Handler
	VideoInfer    stage.Handler
	AudioInfer    stage.Handler
	Lipsync       stage.Handler
	Fusion        stage.Handler
	Report        stage.Handler
}

type pipelineStage struct {
	name    string
	status  jobs.Status
	handler stage.Handler
	band    float64
}

// progressBands are the fraction each stage's completion lands the job at.
// Handlers report sub-stage progress through messages only; the manager owns
// the numbers so the bar climbs monotonically across stage boundaries.
var progressBands = map[jobs.Status]float64{
	jobs.StatusValidating:   0.10,
	jobs.StatusExtracting:   0.35,
	jobs.StatusTranscribing: 0.50,
	jobs.StatusInferVideo:   0.65,
	jobs.StatusInferAudio:   0.78,
	jobs.StatusLipsync:      0.88,
	jobs.StatusFusion:       0.95,
	jobs.StatusReport:       1.00,
}

func (s StageSet) bindings() []pipelineStage {
	return []pipelineStage{
		{name: "validation", status: jobs.StatusValidating, handler: s.Validation, band: progressBands[jobs.StatusValidating]},
		{name: "extraction", status: jobs.StatusExtracting, handler: s.Extraction, band: progressBands[jobs.StatusExtracting]},
		{name: "transcription", status: jobs.StatusTranscribing, handler: s.Transcription, band: progressBands[jobs.StatusTranscribing]},
		{name: "video-inference", status: jobs.StatusInferVideo, handler: s.VideoInfer, band: progressBands[jobs.StatusInferVideo]},
		{name: "audio-inference", status: jobs.StatusInferAudio, handler: s.AudioInfer, band: progressBands[jobs.StatusInferAudio]},
		{name: "lipsync", status: jobs.StatusLipsync, handler: s.Lipsync, band: progressBands[jobs.StatusLipsync]},
		{name: "fusion", status: jobs.StatusFusion, handler: s.Fusion, band: progressBands[jobs.StatusFusion]},
		{name: "report", status: jobs.StatusReport, handler: s.Report, band: progressBands[jobs.StatusReport]},
	}
}

// Package report assembles the final analysis report for a completed job:
// a structured summary document persisted as a database row and an atomic
// JSON artifact in the reports directory.
package report

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"veriscope/internal/jobs"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
)

// SummaryVersion identifies the report document schema.
const SummaryVersion = "2.0.0"

// Summary is the report document serialized into Report.SummaryJSON and the
// artifact file.
type Summary struct {
	Version     string            `json:"version"`
	JobID       int64             `json:"jobId"`
	MediaID     string            `json:"mediaId"`
	Filename    string            `json:"filename"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Headline    string            `json:"headline"`
	Verdict     VerdictSummary    `json:"verdict"`
	Modalities  []ModalitySummary `json:"modalities"`
	Transcript  *TranscriptInfo   `json:"transcript,omitempty"`
	Media       MediaInfo         `json:"media"`
	Segments    int               `json:"segmentCount"`
}

// VerdictSummary carries the fused cross-modality verdict.
type VerdictSummary struct {
	Label        scoring.Label      `json:"label"`
	Description  string             `json:"description"`
	OverallScore float64            `json:"overallScore"`
	Confidence   float64            `json:"confidence"`
	Agreement    float64            `json:"agreement"`
	Concerns     []string           `json:"concerns,omitempty"`
	Weights      map[string]float64 `json:"weights,omitempty"`
}

// ModalitySummary is one analysis channel's contribution to the verdict.
type ModalitySummary struct {
	Modality        scoring.Modality `json:"modality"`
	Score           float64          `json:"score"`
	Confidence      float64          `json:"confidence"`
	Label           scoring.Label    `json:"label"`
	UnitCount       int              `json:"unitCount"`
	FlaggedCount    int              `json:"flaggedCount"`
	ModelName       string           `json:"modelName"`
	ModelVersion    string           `json:"modelVersion"`
	InferenceTimeMs int64            `json:"inferenceTimeMs"`
	Skipped         bool             `json:"skipped,omitempty"`
	SkipReason      string           `json:"skipReason,omitempty"`
}

// TranscriptInfo condenses the transcription outcome for the report.
type TranscriptInfo struct {
	Language     string `json:"language,omitempty"`
	LanguageName string `json:"languageName,omitempty"`
	WordCount    int    `json:"wordCount"`
	Skipped      bool   `json:"skipped,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// MediaInfo describes the analyzed file.
type MediaInfo struct {
	DurationMs int64  `json:"durationMs"`
	Container  string `json:"container,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	VideoCodec string `json:"videoCodec,omitempty"`
	AudioCodec string `json:"audioCodec,omitempty"`
	SHA256     string `json:"sha256"`
	FileSize   int64  `json:"fileSize"`
}

// BuildSummary assembles the report document from the job's accumulated
// results. It requires the fused verdict to be present.
func BuildSummary(job *jobs.Job, item *jobs.MediaItem, results jobs.Results, segments []*jobs.Segment) (*Summary, error) {
	if job == nil || item == nil {
		return nil, services.Wrap(services.ErrInput, "report", "build summary", "missing job or media", nil)
	}
	fusion := results.Fusion
	if fusion == nil {
		return nil, services.Wrap(services.ErrState, "report", "build summary", "fused verdict not recorded", nil)
	}

	summary := &Summary{
		Version:     SummaryVersion,
		JobID:       job.ID,
		MediaID:     item.ID,
		Filename:    item.OriginalFilename,
		GeneratedAt: time.Now().UTC(),
		Headline:    headline(fusion),
		Verdict: VerdictSummary{
			Label:        fusion.Label,
			Description:  fusion.Description,
			OverallScore: fusion.Score,
			Confidence:   fusion.Confidence,
			Agreement:    fusion.Agreement,
			Concerns:     fusion.Concerns,
			Weights:      fusion.Weights,
		},
		Media: MediaInfo{
			Container: containerOf(results),
			SHA256:    item.SHA256,
			FileSize:  item.FileSize,
		},
		Segments: len(segments),
	}
	if meta := results.Metadata; meta != nil {
		summary.Media.DurationMs = meta.DurationMs
		summary.Media.Width = meta.Width
		summary.Media.Height = meta.Height
		summary.Media.VideoCodec = meta.VideoCodec
		summary.Media.AudioCodec = meta.AudioCodec
	}

	for _, m := range scoring.Modalities() {
		outcome := results.Modality(m)
		if outcome == nil {
			continue
		}
		summary.Modalities = append(summary.Modalities, ModalitySummary{
			Modality:        outcome.Modality,
			Score:           outcome.Score,
			Confidence:      outcome.Confidence,
			Label:           outcome.Label,
			UnitCount:       outcome.UnitCount,
			FlaggedCount:    outcome.FlaggedCount,
			ModelName:       outcome.ModelName,
			ModelVersion:    outcome.ModelVersion,
			InferenceTimeMs: outcome.InferenceTimeMs,
			Skipped:         outcome.Skipped,
			SkipReason:      outcome.SkipReason,
		})
	}

	if t := results.Transcript; t != nil {
		summary.Transcript = &TranscriptInfo{
			Language:     t.Language,
			LanguageName: LanguageName(t.Language),
			WordCount:    t.WordCount,
			Skipped:      t.Skipped,
			Reason:       t.Reason,
		}
	}

	return summary, nil
}

// LanguageName resolves a BCP-47 or ISO-639 code into its English display
// name. Unrecognized codes pass through unchanged.
func LanguageName(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}

func headline(fusion *jobs.FusionOutcome) string {
	switch fusion.Label {
	case scoring.LabelAuthentic, scoring.LabelLikelyAuthentic:
		return fmt.Sprintf("This media appears %s with %.0f%% confidence. No significant manipulation indicators detected.",
			fusion.Label, (1-fusion.Score)*100)
	default:
		return fmt.Sprintf("Potential manipulation detected with %.0f%% suspicion score. %s",
			fusion.Score*100, fusion.Description)
	}
}

func containerOf(results jobs.Results) string {
	if results.Metadata != nil {
		return results.Metadata.Container
	}
	return ""
}

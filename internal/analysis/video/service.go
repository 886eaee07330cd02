// Package video scores extracted frames for visual manipulation artifacts.
package video

import (
	"context"

	"veriscope/internal/analysis"
	"veriscope/internal/config"
	"veriscope/internal/scoring"
)

const (
	// frameWindowMs is the evidentiary window attached to one flagged frame.
	frameWindowMs = 200

	flaggedReason = "Potential manipulation detected in frame"

	// maxFlaggedRanges bounds the evidence list for frame-dense media.
	maxFlaggedRanges = 10

	// Aggregation weights: mean carries the verdict, max catches isolated
	// spikes, and high variance adds a fixed instability penalty.
	meanWeight       = 0.6
	maxWeight        = 0.3
	spreadWeight     = 0.1
	spreadFlagStdDev = 0.2
)

// Service detects frame-level manipulation. Units are extracted frames.
type Service struct {
	name    string
	version string
	source  analysis.Source
}

// NewService constructs the video forensics service with the configured
// model identity and score source.
func NewService(cfg *config.Config, source analysis.Source) *Service {
	return &Service{
		name:    cfg.Models.VideoName,
		version: cfg.Models.VideoVersion,
		source:  source,
	}
}

func (s *Service) Modality() scoring.Modality { return scoring.ModalityVideo }
func (s *Service) ModelName() string          { return s.name }
func (s *Service) ModelVersion() string       { return s.version }

// Preprocess turns the extracted frame list into scoring units. Media with
// no frames (audio-only uploads) yields a neutral input, not an error.
func (s *Service) Preprocess(_ context.Context, in analysis.StageInputs) (analysis.Input, error) {
	if len(in.Frames) == 0 {
		return analysis.Input{Neutral: true, Reason: "no frames extracted"}, nil
	}
	units := make([]analysis.Unit, len(in.Frames))
	for i, frame := range in.Frames {
		units[i] = analysis.Unit{
			Index:   frame.Index,
			StartMs: frame.TimestampMs,
			EndMs:   frame.TimestampMs + frameWindowMs,
			Path:    frame.Path,
		}
	}
	return analysis.Input{Units: units}, nil
}

func (s *Service) Predict(ctx context.Context, in analysis.StageInputs, pre analysis.Input) (analysis.Raw, error) {
	if pre.Neutral || len(pre.Units) == 0 {
		return analysis.Raw{}, nil
	}
	scores, err := s.source.Scores(ctx, s.Modality(), in, pre.Units)
	if err != nil {
		return analysis.Raw{}, err
	}
	return analysis.Raw{Scores: scores}, nil
}

// Postprocess aggregates frame scores with a weighted combination of mean,
// max, and a spread penalty, and flags frames above the fixed threshold.
func (s *Service) Postprocess(_ context.Context, in analysis.Input, raw analysis.Raw) (analysis.Result, error) {
	if in.Neutral || len(raw.Scores) == 0 {
		return analysis.Result{
			Label:   scoring.LabelAuthentic,
			Neutral: true,
			Reason:  in.Reason,
		}, nil
	}

	mean := analysis.Mean(raw.Scores)
	max := analysis.Max(raw.Scores)
	spread := analysis.StdDev(raw.Scores)

	score := meanWeight*mean + maxWeight*max
	if spread > spreadFlagStdDev {
		score += spreadWeight
	}
	score = scoring.Clamp01(score)
	confidence := scoring.Clamp01(1 - spread)

	var flagged []analysis.FlaggedRange
	for i, unitScore := range raw.Scores {
		if unitScore <= analysis.FlagThreshold {
			continue
		}
		flagged = append(flagged, analysis.FlaggedRange{
			StartMs:     in.Units[i].StartMs,
			EndMs:       in.Units[i].EndMs,
			Score:       unitScore,
			Confidence:  confidence,
			Description: flaggedReason,
		})
		if len(flagged) == maxFlaggedRanges {
			break
		}
	}

	return analysis.Result{
		Score:      score,
		Confidence: confidence,
		Label:      scoring.LabelForScore(score),
		Flagged:    flagged,
	}, nil
}

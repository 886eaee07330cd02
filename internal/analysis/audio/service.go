// Package audio scores the extracted audio track for synthetic speech.
package audio

import (
	"context"
	"fmt"
	"math"
	"os"

	"veriscope/internal/analysis"
	"veriscope/internal/config"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
)

const (
	// windowMs is the analysis window the track is sliced into.
	windowMs = 5000

	flaggedReason = "Audio spectral anomaly detected"
)

// Service detects spoofed or cloned speech. Units are fixed-length windows
// across the extracted audio track.
type Service struct {
	name    string
	version string
	source  analysis.Source
}

// NewService constructs the audio spoof service with the configured model
// identity and score source.
func NewService(cfg *config.Config, source analysis.Source) *Service {
	return &Service{
		name:    cfg.Models.AudioName,
		version: cfg.Models.AudioVersion,
		source:  source,
	}
}

func (s *Service) Modality() scoring.Modality { return scoring.ModalityAudio }
func (s *Service) ModelName() string          { return s.name }
func (s *Service) ModelVersion() string       { return s.version }

// Preprocess slices the extracted track into windows. Media without an audio
// stream yields a neutral input; a recorded track that is unreadable is an
// input error.
func (s *Service) Preprocess(_ context.Context, in analysis.StageInputs) (analysis.Input, error) {
	if in.AudioPath == "" || in.DurationMs <= 0 {
		return analysis.Input{Neutral: true, Reason: "no audio stream"}, nil
	}
	if _, err := os.Stat(in.AudioPath); err != nil {
		return analysis.Input{}, services.Wrap(services.ErrInput, "audio", "preprocess",
			fmt.Sprintf("Extracted audio track missing at %s", in.AudioPath), err)
	}

	var units []analysis.Unit
	for start := int64(0); start < in.DurationMs; start += windowMs {
		end := start + windowMs
		if end > in.DurationMs {
			end = in.DurationMs
		}
		units = append(units, analysis.Unit{
			Index:   len(units),
			StartMs: start,
			EndMs:   end,
		})
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

// Postprocess takes the mean window score as the verdict. Confidence peaks
// at the ambiguous midpoint and falls to zero at the extremes.
func (s *Service) Postprocess(_ context.Context, in analysis.Input, raw analysis.Raw) (analysis.Result, error) {
	if in.Neutral || len(raw.Scores) == 0 {
		return analysis.Result{
			Label:   scoring.LabelAuthentic,
			Neutral: true,
			Reason:  in.Reason,
		}, nil
	}

	score := analysis.Mean(raw.Scores)
	confidence := scoring.Clamp01(1 - 2*math.Abs(score-0.5))

	var flagged []analysis.FlaggedRange
	for i, windowScore := range raw.Scores {
		if windowScore <= analysis.FlagThreshold {
			continue
		}
		flagged = append(flagged, analysis.FlaggedRange{
			StartMs:     in.Units[i].StartMs,
			EndMs:       in.Units[i].EndMs,
			Score:       windowScore,
			Confidence:  confidence,
			Description: flaggedReason,
		})
	}

	return analysis.Result{
		Score:      score,
		Confidence: confidence,
		Label:      scoring.LabelForScore(score),
		Flagged:    flagged,
	}, nil
}

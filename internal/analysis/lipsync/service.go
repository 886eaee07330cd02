// Package lipsync verifies audio-visual synchronization over word-aligned
// windows of the transcript.
package lipsync

import (
	"context"

	"veriscope/internal/analysis"
	"veriscope/internal/config"
	"veriscope/internal/scoring"
)

const (
	flaggedReason = "Lip-audio synchronization mismatch"

	// maxFlaggedRanges bounds the evidence list to the most significant
	// mismatched words.
	maxFlaggedRanges = 5
)

// Service detects lip-audio desynchronization. Units are word windows taken
// from the transcript; both frames and a transcript are required, and either
// missing makes the whole modality neutral rather than an error.
type Service struct {
	name    string
	version string
	source  analysis.Source
}

// NewService constructs the lipsync verifier with the configured model
// identity and score source.
func NewService(cfg *config.Config, source analysis.Source) *Service {
	return &Service{
		name:    cfg.Models.LipsyncName,
		version: cfg.Models.LipsyncVersion,
		source:  source,
	}
}

func (s *Service) Modality() scoring.Modality { return scoring.ModalityLipsync }
func (s *Service) ModelName() string          { return s.name }
func (s *Service) ModelVersion() string       { return s.version }

func (s *Service) Preprocess(_ context.Context, in analysis.StageInputs) (analysis.Input, error) {
	if len(in.Frames) == 0 {
		return analysis.Input{Neutral: true, Reason: "no frames extracted"}, nil
	}
	if in.Transcript == nil || len(in.Transcript.Words) == 0 {
		return analysis.Input{Neutral: true, Reason: "no transcript available"}, nil
	}

	units := make([]analysis.Unit, 0, len(in.Transcript.Words))
	for _, word := range in.Transcript.Words {
		end := word.EndMs
		if end <= word.StartMs {
			end = word.StartMs + 1
		}
		units = append(units, analysis.Unit{
			Index:   len(units),
			StartMs: word.StartMs,
			EndMs:   end,
			Word:    word.Word,
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

// Postprocess takes the mean word mismatch as the verdict. A high mismatch
// score erodes confidence, since a badly desynced track also degrades the
// word alignment the measurement depends on.
func (s *Service) Postprocess(_ context.Context, in analysis.Input, raw analysis.Raw) (analysis.Result, error) {
	if in.Neutral || len(raw.Scores) == 0 {
		return analysis.Result{
			Label:   scoring.LabelAuthentic,
			Neutral: true,
			Reason:  in.Reason,
		}, nil
	}

	score := analysis.Mean(raw.Scores)
	confidence := scoring.Clamp01(1 - 0.5*score)

	var flagged []analysis.FlaggedRange
	for i, mismatch := range raw.Scores {
		if mismatch <= analysis.FlagThreshold {
			continue
		}
		flagged = append(flagged, analysis.FlaggedRange{
			StartMs:     in.Units[i].StartMs,
			EndMs:       in.Units[i].EndMs,
			Score:       mismatch,
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

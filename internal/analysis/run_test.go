package analysis_test

import (
	"context"
	"testing"

	"veriscope/internal/analysis"
	"veriscope/internal/scoring"
)

type fakeService struct {
	modality scoring.Modality
	scores   []float64
}

func (f *fakeService) Modality() scoring.Modality { return f.modality }
func (f *fakeService) ModelName() string          { return "fake_model" }
func (f *fakeService) ModelVersion() string       { return "v0.0.1" }

func (f *fakeService) Preprocess(context.Context, analysis.StageInputs) (analysis.Input, error) {
	return analysis.Input{Units: makeUnits(len(f.scores))}, nil
}

func (f *fakeService) Predict(context.Context, analysis.StageInputs, analysis.Input) (analysis.Raw, error) {
	return analysis.Raw{Scores: append([]float64(nil), f.scores...)}, nil
}

func (f *fakeService) Postprocess(_ context.Context, in analysis.Input, raw analysis.Raw) (analysis.Result, error) {
	return analysis.Result{
		Score:      analysis.Mean(raw.Scores),
		Confidence: 0.9,
		Label:      scoring.LabelForScore(analysis.Mean(raw.Scores)),
	}, nil
}

func TestRunStampsModelIdentity(t *testing.T) {
	svc := &fakeService{modality: scoring.ModalityVideo, scores: []float64{0.2, 0.4}}
	result, err := analysis.Run(context.Background(), svc, analysis.StageInputs{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Modality != scoring.ModalityVideo {
		t.Fatalf("modality = %s", result.Modality)
	}
	if result.UnitCount != 2 {
		t.Fatalf("unit count = %d, want 2", result.UnitCount)
	}
	if result.Run.ModelName != "fake_model" || result.Run.ModelVersion != "v0.0.1" {
		t.Fatalf("model identity not stamped: %+v", result.Run)
	}
	if result.Run.Score == nil || *result.Run.Score != result.Score {
		t.Fatalf("run score = %v, want %v", result.Run.Score, result.Score)
	}
}

func TestRunClampsUnboundedScores(t *testing.T) {
	svc := &fakeService{modality: scoring.ModalityAudio, scores: []float64{1.7, -0.3}}
	result, err := analysis.Run(context.Background(), svc, analysis.StageInputs{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Score < 0 || result.Score > 1 {
		t.Fatalf("result score %v escaped [0, 1]", result.Score)
	}
	if result.Score != 0.5 {
		t.Fatalf("clamped mean = %v, want 0.5", result.Score)
	}
}

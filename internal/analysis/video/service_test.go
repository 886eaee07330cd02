package video_test

import (
	"context"
	"math"
	"testing"

	"veriscope/internal/analysis"
	"veriscope/internal/analysis/video"
	"veriscope/internal/scoring"
	"veriscope/internal/testsupport"
)

type fixedSource struct {
	scores []float64
}

func (f fixedSource) Scores(context.Context, scoring.Modality, analysis.StageInputs, []analysis.Unit) ([]float64, error) {
	return append([]float64(nil), f.scores...), nil
}

func frames(n int) []analysis.FrameRef {
	refs := make([]analysis.FrameRef, n)
	for i := range refs {
		refs[i] = analysis.FrameRef{Index: i, Path: "frame.jpg", TimestampMs: int64(i * 200)}
	}
	return refs
}

func TestPreprocessBuildsFrameWindows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := video.NewService(cfg, fixedSource{})

	input, err := svc.Preprocess(context.Background(), analysis.StageInputs{Frames: frames(3)})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if input.Neutral {
		t.Fatal("frames present should not be neutral")
	}
	if len(input.Units) != 3 {
		t.Fatalf("unit count = %d, want 3", len(input.Units))
	}
	if input.Units[1].StartMs != 200 || input.Units[1].EndMs != 400 {
		t.Fatalf("unit window = [%d, %d], want [200, 400]", input.Units[1].StartMs, input.Units[1].EndMs)
	}
}

func TestPreprocessNoFramesIsNeutral(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := video.NewService(cfg, fixedSource{})

	input, err := svc.Preprocess(context.Background(), analysis.StageInputs{})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !input.Neutral {
		t.Fatal("missing frames should yield a neutral input")
	}

	result, err := svc.Postprocess(context.Background(), input, analysis.Raw{})
	if err != nil {
		t.Fatalf("Postprocess: %v", err)
	}
	if !result.Neutral || result.Reason == "" {
		t.Fatalf("neutral result not propagated: %+v", result)
	}
}

func TestPostprocessAggregation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	scores := []float64{0.2, 0.8, 0.6}
	svc := video.NewService(cfg, fixedSource{scores: scores})

	input, err := svc.Preprocess(context.Background(), analysis.StageInputs{Frames: frames(3)})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	raw, err := svc.Predict(context.Background(), analysis.StageInputs{}, input)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	result, err := svc.Postprocess(context.Background(), input, raw)
	if err != nil {
		t.Fatalf("Postprocess: %v", err)
	}

	mean := (0.2 + 0.8 + 0.6) / 3
	spread := analysis.StdDev(scores)
	want := 0.6*mean + 0.3*0.8
	if spread > 0.2 {
		want += 0.1
	}
	if math.Abs(result.Score-want) > 1e-12 {
		t.Fatalf("score = %v, want %v", result.Score, want)
	}
	if math.Abs(result.Confidence-(1-spread)) > 1e-12 {
		t.Fatalf("confidence = %v, want %v", result.Confidence, 1-spread)
	}

	// 0.8 and 0.6 exceed the flag threshold.
	if len(result.Flagged) != 2 {
		t.Fatalf("flagged count = %d, want 2", len(result.Flagged))
	}
	for _, flag := range result.Flagged {
		if flag.Description != "Potential manipulation detected in frame" {
			t.Fatalf("unexpected flag description %q", flag.Description)
		}
		if flag.EndMs != flag.StartMs+200 {
			t.Fatalf("flag window = [%d, %d], want 200ms span", flag.StartMs, flag.EndMs)
		}
	}
}

func TestPostprocessCapsFlaggedRanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	scores := make([]float64, 25)
	for i := range scores {
		scores[i] = 0.9
	}
	svc := video.NewService(cfg, fixedSource{scores: scores})

	input, err := svc.Preprocess(context.Background(), analysis.StageInputs{Frames: frames(25)})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	raw, err := svc.Predict(context.Background(), analysis.StageInputs{}, input)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	result, err := svc.Postprocess(context.Background(), input, raw)
	if err != nil {
		t.Fatalf("Postprocess: %v", err)
	}
	if len(result.Flagged) != 10 {
		t.Fatalf("flagged count = %d, want cap of 10", len(result.Flagged))
	}
}

package fusion_test

import (
	"errors"
	"math"
	"testing"

	"veriscope/internal/fusion"
	"veriscope/internal/services"
)

func TestCalibrateSeparableDataset(t *testing.T) {
	samples := []fusion.LabeledSample{
		{VideoScore: 0.9, AudioScore: 0.85, LipsyncScore: 0.8, Fake: true},
		{VideoScore: 0.8, AudioScore: 0.9, LipsyncScore: 0.75, Fake: true},
		{VideoScore: 0.95, AudioScore: 0.7, LipsyncScore: 0.9, Fake: true},
		{VideoScore: 0.1, AudioScore: 0.15, LipsyncScore: 0.2, Fake: false},
		{VideoScore: 0.2, AudioScore: 0.1, LipsyncScore: 0.05, Fake: false},
		{VideoScore: 0.05, AudioScore: 0.2, LipsyncScore: 0.1, Fake: false},
	}

	weights, accuracy, err := fusion.Calibrate(samples)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if accuracy != 1.0 {
		t.Fatalf("accuracy = %v, want 1.0 on separable data", accuracy)
	}
	if err := weights.Validate(); err != nil {
		t.Fatalf("calibrated weights should validate: %v", err)
	}
}

func TestCalibrateDeterministic(t *testing.T) {
	samples := []fusion.LabeledSample{
		{VideoScore: 0.6, AudioScore: 0.4, LipsyncScore: 0.55, Fake: true},
		{VideoScore: 0.45, AudioScore: 0.6, LipsyncScore: 0.3, Fake: false},
		{VideoScore: 0.7, AudioScore: 0.3, LipsyncScore: 0.65, Fake: true},
		{VideoScore: 0.35, AudioScore: 0.5, LipsyncScore: 0.4, Fake: false},
	}

	first, firstAcc, err := fusion.Calibrate(samples)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, acc, err := fusion.Calibrate(samples)
		if err != nil {
			t.Fatalf("Calibrate run %d: %v", i, err)
		}
		if again != first || acc != firstAcc {
			t.Fatalf("run %d diverged: %+v (%v) vs %+v (%v)", i, again, acc, first, firstAcc)
		}
	}
}

func TestCalibrateTieKeepsFirstGridPoint(t *testing.T) {
	// All samples sit away from the 0.5 threshold for every candidate
	// weighting, so every grid point scores the same accuracy.
	samples := []fusion.LabeledSample{
		{VideoScore: 0.95, AudioScore: 0.95, LipsyncScore: 0.95, Fake: true},
		{VideoScore: 0.05, AudioScore: 0.05, LipsyncScore: 0.05, Fake: false},
	}

	weights, accuracy, err := fusion.Calibrate(samples)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if accuracy != 1.0 {
		t.Fatalf("accuracy = %v, want 1.0", accuracy)
	}
	want := fusion.Weights{Video: 0.2, Audio: 0.1, Lipsync: 0.7}
	if math.Abs(weights.Video-want.Video) > 1e-9 ||
		math.Abs(weights.Audio-want.Audio) > 1e-9 ||
		math.Abs(weights.Lipsync-want.Lipsync) > 1e-9 {
		t.Fatalf("tie broke to %+v, want first grid point %+v", weights, want)
	}
}

func TestCalibrateRejectsBadInput(t *testing.T) {
	if _, _, err := fusion.Calibrate(nil); !errors.Is(err, services.ErrInput) {
		t.Fatalf("empty input: got %v, want input error", err)
	}
	bad := []fusion.LabeledSample{{VideoScore: 1.5, AudioScore: 0.2, LipsyncScore: 0.2, Fake: true}}
	if _, _, err := fusion.Calibrate(bad); !errors.Is(err, services.ErrInput) {
		t.Fatalf("out-of-range score: got %v, want input error", err)
	}
}

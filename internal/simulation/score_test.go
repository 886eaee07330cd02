package simulation_test

import (
	"testing"

	"veriscope/internal/scoring"
	"veriscope/internal/simulation"
)

func TestKnownFakeKeywords(t *testing.T) {
	cases := map[string]bool{
		"DeepFake_interview.mp4": true,
		"synthetic-voice.wav":    true,
		"ai_generated.mov":       true,
		"demo.mp4":               true,
		"family_holiday.mp4":     false,
		"press_briefing.mov":     false,
	}
	for name, want := range cases {
		if got := simulation.KnownFake(name); got != want {
			t.Errorf("KnownFake(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSeedStableAndSalted(t *testing.T) {
	a := simulation.Seed("abc", scoring.ModalityVideo)
	b := simulation.Seed("abc", scoring.ModalityVideo)
	if a != b {
		t.Fatalf("seed not stable: %d vs %d", a, b)
	}
	if a < 0 {
		t.Fatalf("seed %d negative", a)
	}
	if simulation.Seed("abc", scoring.ModalityAudio) == a {
		t.Fatal("modality salt should change the seed")
	}
	if simulation.Seed("abd", scoring.ModalityVideo) == a {
		t.Fatal("basis should change the seed")
	}
}

func TestScoresDeterministicAndBanded(t *testing.T) {
	first := simulation.Scores("sha", scoring.ModalityVideo, true, 16)
	second := simulation.Scores("sha", scoring.ModalityVideo, true, 16)
	if len(first) != 16 {
		t.Fatalf("score count = %d, want 16", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("score %d differs between identical draws", i)
		}
		if first[i] < 0.78 || first[i] > 0.96 {
			t.Fatalf("fake video score %v outside band", first[i])
		}
	}

	for _, score := range simulation.Scores("sha", scoring.ModalityAudio, true, 16) {
		if score < 0.85*0.78 || score > 0.85*0.96 {
			t.Fatalf("fake audio score %v outside scaled band", score)
		}
	}
	for _, score := range simulation.Scores("sha", scoring.ModalityLipsync, false, 16) {
		if score < 0 || score > 0.70*0.22 {
			t.Fatalf("authentic lipsync score %v outside scaled band", score)
		}
	}
}

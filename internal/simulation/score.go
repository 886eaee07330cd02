package simulation

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strings"

	"veriscope/internal/scoring"
)

// fakeKeywords bias simulated scoring into the manipulated band so demo
// uploads named "deepfake_demo.mp4" produce an interesting verdict.
var fakeKeywords = []string{"fake", "deep", "manipulated", "synthetic", "ai", "gen", "test", "demo"}

// Score bands per ground truth. Modality scores are drawn from these ranges
// before the per-modality scale is applied.
const (
	fakeBandLow       = 0.78
	fakeBandHigh      = 0.96
	authenticBandLow  = 0.04
	authenticBandHigh = 0.22
)

// Audio and lipsync detectors track the video signal at reduced strength.
const (
	audioScale   = 0.85
	lipsyncScale = 0.70
)

// KnownFake reports whether the original filename carries a keyword that
// forces the simulated analysis into the manipulated score band.
func KnownFake(filename string) bool {
	lowered := strings.ToLower(filename)
	for _, keyword := range fakeKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// Seed derives a deterministic RNG seed from a stable basis (normally the
// media sha256) salted per modality, so the three modalities draw independent
// but reproducible score streams for the same media.
func Seed(basis string, modality scoring.Modality) int64 {
	sum := sha256.Sum256([]byte(basis + "|" + string(modality)))
	return int64(binary.BigEndian.Uint64(sum[:8]) & (1<<63 - 1))
}

// Band returns the raw score range simulated units draw from, before the
// modality scale is applied.
func Band(fake bool) (low, high float64) {
	if fake {
		return fakeBandLow, fakeBandHigh
	}
	return authenticBandLow, authenticBandHigh
}

func modalityScale(modality scoring.Modality) float64 {
	switch modality {
	case scoring.ModalityAudio:
		return audioScale
	case scoring.ModalityLipsync:
		return lipsyncScale
	default:
		return 1.0
	}
}

// Scores draws n deterministic per-unit scores for the modality. The same
// basis, modality, truth flag, and count always yield the identical slice.
func Scores(basis string, modality scoring.Modality, fake bool, n int) []float64 {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(Seed(basis, modality)))
	low, high := Band(fake)
	scale := modalityScale(modality)
	out := make([]float64, n)
	for i := range out {
		out[i] = scoring.Clamp01(scale * (low + rng.Float64()*(high-low)))
	}
	return out
}

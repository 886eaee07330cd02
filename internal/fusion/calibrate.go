package fusion

import (
	"fmt"

	"veriscope/internal/services"
)

// minModalityWeight is the floor below which a calibration candidate is
// rejected: no modality may be starved entirely out of the fusion.
const minModalityWeight = 0.05

// Grid points searched during calibration. Points are derived from integer
// indices so the grid is exact; the upper bounds are exclusive.
const (
	calibrationVideoStart = 0.2
	calibrationVideoSteps = 5 // 0.2, 0.3, 0.4, 0.5, 0.6
	calibrationAudioStart = 0.1
	calibrationAudioSteps = 4 // 0.1, 0.2, 0.3, 0.4
	calibrationStep       = 0.1
)

// LabeledSample is one validation tuple for weight calibration. Fake is the
// ground truth: true when the sample is a known manipulation.
type LabeledSample struct {
	VideoScore   float64 `json:"videoScore"`
	AudioScore   float64 `json:"audioScore"`
	LipsyncScore float64 `json:"lipsyncScore"`
	Fake         bool    `json:"fake"`
}

// Calibrate grid-searches base weight triples against the labeled set and
// returns the triple with the best classification accuracy at the 0.5
// decision boundary, together with that accuracy. Fused scores here are the
// plain weighted sum; confidence weighting does not apply to calibration.
// Ties keep the first triple found in grid order. Calibrate is a pure
// function of its input and mutates nothing.
func Calibrate(samples []LabeledSample) (Weights, float64, error) {
	if len(samples) == 0 {
		return Weights{}, 0, fmt.Errorf("%w: calibration requires at least one labeled sample", services.ErrInput)
	}
	for i, sample := range samples {
		for _, score := range []float64{sample.VideoScore, sample.AudioScore, sample.LipsyncScore} {
			if score < 0 || score > 1 {
				return Weights{}, 0, fmt.Errorf("%w: sample %d score %.4f outside [0, 1]", services.ErrInput, i, score)
			}
		}
	}

	best := DefaultWeights()
	bestAccuracy := 0.0

	for vi := 0; vi < calibrationVideoSteps; vi++ {
		videoW := calibrationVideoStart + calibrationStep*float64(vi)
		for ai := 0; ai < calibrationAudioSteps; ai++ {
			audioW := calibrationAudioStart + calibrationStep*float64(ai)
			lipsyncW := 1.0 - videoW - audioW
			if lipsyncW < minModalityWeight {
				continue
			}

			correct := 0
			for _, sample := range samples {
				fused := videoW*sample.VideoScore + audioW*sample.AudioScore + lipsyncW*sample.LipsyncScore
				if (fused > 0.5) == sample.Fake {
					correct++
				}
			}

			accuracy := float64(correct) / float64(len(samples))
			if accuracy > bestAccuracy {
				bestAccuracy = accuracy
				best = Weights{Video: videoW, Audio: audioW, Lipsync: lipsyncW}
			}
		}
	}

	return best, bestAccuracy, nil
}

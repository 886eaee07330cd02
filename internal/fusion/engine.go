package fusion

import (
	"fmt"
	"math"

	"veriscope/internal/config"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
)

// Concern strings reported per modality when its individual score crosses
// the reporting threshold. Order follows scoring.Modalities.
var modalityConcerns = map[scoring.Modality]string{
	scoring.ModalityVideo:   "Visual manipulation artifacts detected",
	scoring.ModalityAudio:   "Synthetic audio patterns detected",
	scoring.ModalityLipsync: "Audio-visual synchronization mismatch",
}

const concernThreshold = 0.5

// Weights carries the base fusion weight per modality. Weights apply before
// confidence adjustment and must sum to one.
type Weights struct {
	Video   float64 `json:"video"`
	Audio   float64 `json:"audio"`
	Lipsync float64 `json:"lipsync"`
}

// DefaultWeights returns the stock weight triple.
func DefaultWeights() Weights {
	return Weights{Video: 0.45, Audio: 0.30, Lipsync: 0.25}
}

// WeightsFromConfig builds the weight triple from the fusion config section.
func WeightsFromConfig(cfg *config.Config) Weights {
	if cfg == nil {
		return DefaultWeights()
	}
	return Weights{
		Video:   cfg.Fusion.VideoWeight,
		Audio:   cfg.Fusion.AudioWeight,
		Lipsync: cfg.Fusion.LipsyncWeight,
	}
}

// Validate rejects weight triples that do not sum to one or starve a
// modality below the calibration floor.
func (w Weights) Validate() error {
	sum := w.Video + w.Audio + w.Lipsync
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("%w: fusion weights sum to %.4f, want 1.0", services.ErrConfiguration, sum)
	}
	for name, value := range map[string]float64{"video": w.Video, "audio": w.Audio, "lipsync": w.Lipsync} {
		if value < minModalityWeight {
			return fmt.Errorf("%w: %s weight %.4f below minimum %.2f", services.ErrConfiguration, name, value, minModalityWeight)
		}
	}
	return nil
}

// For returns the base weight for a modality.
func (w Weights) For(m scoring.Modality) float64 {
	switch m {
	case scoring.ModalityVideo:
		return w.Video
	case scoring.ModalityAudio:
		return w.Audio
	case scoring.ModalityLipsync:
		return w.Lipsync
	default:
		return 0
	}
}

// Map renders the weights keyed by modality name for result documents.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		string(scoring.ModalityVideo):   w.Video,
		string(scoring.ModalityAudio):   w.Audio,
		string(scoring.ModalityLipsync): w.Lipsync,
	}
}

// Sample is one modality's contribution to fusion.
type Sample struct {
	Score      float64
	Confidence float64
}

// Verdict is the fused cross-modality outcome.
type Verdict struct {
	Score       float64
	Label       scoring.Label
	Description string
	Confidence  float64
	Agreement   float64
	Concerns    []string
	Weights     Weights
}

// Engine fuses modality samples under a fixed weight triple. The engine is
// stateless apart from its weights and safe for concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine constructs a fusion engine. Invalid weights are rejected so a
// misconfigured daemon fails at startup rather than at the first verdict.
func NewEngine(weights Weights) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

// Weights returns the engine's base weight triple.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Fuse combines the present modality samples into a verdict. Missing
// modalities are excluded from weighting entirely rather than scored as
// zero. Malformed input is a state error: fusion runs on validated stage
// output only, so out-of-range values indicate a bug upstream.
func (e *Engine) Fuse(samples map[scoring.Modality]Sample) (Verdict, error) {
	if len(samples) == 0 {
		return Verdict{}, fmt.Errorf("%w: fusion requires at least one modality sample", services.ErrState)
	}

	present := make([]scoring.Modality, 0, len(samples))
	for _, modality := range scoring.Modalities() {
		sample, ok := samples[modality]
		if !ok {
			continue
		}
		if sample.Score < 0 || sample.Score > 1 {
			return Verdict{}, fmt.Errorf("%w: %s score %.4f outside [0, 1]", services.ErrState, modality, sample.Score)
		}
		if sample.Confidence < 0 || sample.Confidence > 1 {
			return Verdict{}, fmt.Errorf("%w: %s confidence %.4f outside [0, 1]", services.ErrState, modality, sample.Confidence)
		}
		present = append(present, modality)
	}
	if len(present) != len(samples) {
		return Verdict{}, fmt.Errorf("%w: fusion received an unknown modality", services.ErrState)
	}

	// Effective weight = base weight x confidence, renormalized over the
	// present modalities. A zero total means every confidence collapsed;
	// fall back to the plain mean of the raw scores.
	totalEffective := 0.0
	effective := make(map[scoring.Modality]float64, len(present))
	for _, modality := range present {
		w := e.weights.For(modality) * samples[modality].Confidence
		effective[modality] = w
		totalEffective += w
	}

	var fused float64
	if totalEffective > 0 {
		for _, modality := range present {
			fused += effective[modality] / totalEffective * samples[modality].Score
		}
	} else {
		for _, modality := range present {
			fused += samples[modality].Score
		}
		fused /= float64(len(present))
	}
	fused = scoring.Clamp01(fused)

	agreement := scoring.Clamp01(1 - stddev(scoresOf(samples, present)))
	confidence := agreement * (1 - 0.5*math.Abs(fused-0.5))
	label := scoring.LabelForScore(fused)

	var concerns []string
	for _, modality := range scoring.Modalities() {
		sample, ok := samples[modality]
		if ok && sample.Score > concernThreshold {
			concerns = append(concerns, modalityConcerns[modality])
		}
	}

	return Verdict{
		Score:       fused,
		Label:       label,
		Description: label.Description(),
		Confidence:  confidence,
		Agreement:   agreement,
		Concerns:    concerns,
		Weights:     e.weights,
	}, nil
}

func scoresOf(samples map[scoring.Modality]Sample, present []scoring.Modality) []float64 {
	scores := make([]float64, 0, len(present))
	for _, modality := range present {
		scores = append(scores, samples[modality].Score)
	}
	return scores
}

// stddev computes the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

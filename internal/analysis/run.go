package analysis

import (
	"context"
	"fmt"
	"time"

	"veriscope/internal/jobs"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
)

// Run drives one modality through its preprocess, predict, and postprocess
// lifecycle, clamps the unit scores so downstream math is always bounded,
// and stamps the model identity and inference time onto the result.
func Run(ctx context.Context, svc Service, in StageInputs) (Result, error) {
	if svc == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "analysis", "run", "Modality service is nil", nil)
	}

	input, err := svc.Preprocess(ctx, in)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	raw, err := svc.Predict(ctx, in, input)
	if err != nil {
		return Result{}, err
	}
	elapsed := time.Since(start)

	if !input.Neutral && len(raw.Scores) != len(input.Units) {
		return Result{}, services.Wrap(services.ErrState, "analysis", "run",
			fmt.Sprintf("%s predict returned %d scores for %d units", svc.Modality(), len(raw.Scores), len(input.Units)), nil)
	}
	for i, score := range raw.Scores {
		raw.Scores[i] = scoring.Clamp01(score)
	}

	result, err := svc.Postprocess(ctx, input, raw)
	if err != nil {
		return Result{}, err
	}

	result.Modality = svc.Modality()
	result.UnitCount = len(input.Units)
	result.Score = scoring.Clamp01(result.Score)
	result.Confidence = scoring.Clamp01(result.Confidence)

	score := result.Score
	confidence := result.Confidence
	result.Run = jobs.ModelRun{
		Modality:        svc.Modality(),
		ModelName:       svc.ModelName(),
		ModelVersion:    svc.ModelVersion(),
		Score:           &score,
		Confidence:      &confidence,
		InferenceTimeMs: elapsed.Milliseconds(),
	}
	return result, nil
}

package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"veriscope/internal/config"
	"veriscope/internal/fusion"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
)

// simulatedDurationMs stands in for media that was never probed.
const simulatedDurationMs = 15_500

// Fixed per-modality confidences reported by the fabricated analysis.
const (
	videoConfidence   = 0.89
	audioConfidence   = 0.87
	lipsyncConfidence = 0.85
)

// Runner fabricates a finished analysis through the real store and fusion
// engine, without walking the worker pipeline. The verdict is deterministic
// for a given media item, so repeated demo runs agree with each other.
type Runner struct {
	cfg    *config.Config
	store  *jobs.Store
	engine *fusion.Engine
	logger *slog.Logger
}

// NewRunner constructs the instant analysis runner.
func NewRunner(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Runner, error) {
	engine, err := fusion.NewEngine(fusion.WeightsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		store:  store,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "simulation"),
	}, nil
}

// Run creates a job for the media item and completes it immediately with
// fabricated modality outcomes, segments, model runs, a fused verdict, and a
// report. Every persisted transition still walks the legal stage sequence.
func (r *Runner) Run(ctx context.Context, mediaID string, opts jobs.Options) (*jobs.Job, error) {
	if !opts.Video && !opts.Audio && !opts.Lipsync {
		return nil, services.Wrap(services.ErrInput, "simulation", "run", "At least one modality must be enabled", nil)
	}

	media, err := r.store.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	job, created, err := r.store.NewJob(ctx, mediaID, opts)
	if err != nil {
		return nil, err
	}
	if !created && job.Status != jobs.StatusPending {
		return nil, services.Wrap(services.ErrState, "simulation", "run",
			fmt.Sprintf("Media already has an active job %d in stage %s", job.ID, job.Stage), nil)
	}

	basis := media.SHA256
	fake := KnownFake(media.OriginalFilename)
	durationMs := simulatedDurationMs
	if media.DurationMs != nil && *media.DurationMs > 0 {
		durationMs = int(*media.DurationMs)
	}

	videoScore := Scores(basis, scoring.ModalityVideo, fake, 1)[0]
	audioScore := Scores(basis, scoring.ModalityAudio, fake, 1)[0]
	lipsyncScore := Scores(basis, scoring.ModalityLipsync, fake, 1)[0]

	frameCount := durationMs / 1000 * r.cfg.Extraction.FPS
	if frameCount < 1 {
		frameCount = 1
	}
	windowCount := (durationMs + 4999) / 5000
	wordCount := durationMs / 400

	segments := cannedSegments(fake, videoScore, audioScore, lipsyncScore)

	logger := logging.WithContext(ctx, r.logger)
	samples := make(map[scoring.Modality]fusion.Sample)
	current := job.Status

	for {
		next, ok := jobs.NextStage(current)
		if !ok {
			break
		}
		job, err = r.store.Advance(ctx, job.ID, current, next)
		if err != nil {
			return nil, err
		}
		current = next

		switch next {
		case jobs.StatusValidating:
			if media.DurationMs == nil {
				if err := r.store.SetMediaDuration(ctx, media.ID, int64(durationMs)); err != nil {
					return nil, err
				}
			}
		case jobs.StatusExtracting:
			if _, err := r.store.AppendResult(ctx, job.ID, jobs.ResultExtraction, &jobs.ExtractionSummary{
				FrameCount: frameCount,
				FPS:        float64(r.cfg.Extraction.FPS),
			}); err != nil {
				return nil, err
			}
		case jobs.StatusTranscribing:
			if _, err := r.store.AppendResult(ctx, job.ID, jobs.ResultTranscript, &jobs.TranscriptSummary{
				Skipped: true,
				Reason:  "simulated analysis",
			}); err != nil {
				return nil, err
			}
		case jobs.StatusInferVideo:
			if !opts.Video {
				continue
			}
			if err := r.recordModality(ctx, job.ID, modalityRecord{
				modality:   scoring.ModalityVideo,
				score:      videoScore,
				confidence: videoConfidence,
				modelName:  r.cfg.Models.VideoName,
				version:    r.cfg.Models.VideoVersion,
				unitCount:  frameCount,
				key:        jobs.ResultVideo,
				segments:   segments,
			}); err != nil {
				return nil, err
			}
			samples[scoring.ModalityVideo] = fusion.Sample{Score: videoScore, Confidence: videoConfidence}
		case jobs.StatusInferAudio:
			if !opts.Audio {
				continue
			}
			if err := r.recordModality(ctx, job.ID, modalityRecord{
				modality:   scoring.ModalityAudio,
				score:      audioScore,
				confidence: audioConfidence,
				modelName:  r.cfg.Models.AudioName,
				version:    r.cfg.Models.AudioVersion,
				unitCount:  windowCount,
				key:        jobs.ResultAudio,
				segments:   segments,
			}); err != nil {
				return nil, err
			}
			samples[scoring.ModalityAudio] = fusion.Sample{Score: audioScore, Confidence: audioConfidence}
		case jobs.StatusLipsync:
			if !opts.Lipsync {
				continue
			}
			if err := r.recordModality(ctx, job.ID, modalityRecord{
				modality:   scoring.ModalityLipsync,
				score:      lipsyncScore,
				confidence: lipsyncConfidence,
				modelName:  r.cfg.Models.LipsyncName,
				version:    r.cfg.Models.LipsyncVersion,
				unitCount:  wordCount,
				key:        jobs.ResultLipsync,
				segments:   segments,
			}); err != nil {
				return nil, err
			}
			samples[scoring.ModalityLipsync] = fusion.Sample{Score: lipsyncScore, Confidence: lipsyncConfidence}
		case jobs.StatusFusion:
			verdict, err := r.engine.Fuse(samples)
			if err != nil {
				return nil, err
			}
			if err := r.store.SetVerdict(ctx, job.ID, verdict.Score, verdict.Label); err != nil {
				return nil, err
			}
			if _, err := r.store.AppendResult(ctx, job.ID, jobs.ResultFusion, &jobs.FusionOutcome{
				Score:       verdict.Score,
				Label:       verdict.Label,
				Confidence:  verdict.Confidence,
				Agreement:   verdict.Agreement,
				Description: verdict.Description,
				Concerns:    verdict.Concerns,
				Weights:     verdict.Weights.Map(),
			}); err != nil {
				return nil, err
			}
		case jobs.StatusReport:
			if err := r.saveReport(ctx, job.ID, segments); err != nil {
				return nil, err
			}
		}

		job.SetProgress("Simulating", "Simulated analysis", stageFraction(next))
		if err := r.store.UpdateProgress(ctx, job); err != nil {
			return nil, err
		}
	}

	job, err = r.store.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	logger.Info("simulated analysis complete",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldMediaID, mediaID),
		logging.String("label", string(job.Label)),
		logging.Bool("keyword_biased", fake),
	)
	return job, nil
}

type modalityRecord struct {
	modality   scoring.Modality
	score      float64
	confidence float64
	modelName  string
	version    string
	unitCount  int
	key        jobs.ResultKey
	segments   []jobs.Segment
}

func (r *Runner) recordModality(ctx context.Context, jobID int64, rec modalityRecord) error {
	score := rec.score
	confidence := rec.confidence
	if err := r.store.RecordModelRun(ctx, &jobs.ModelRun{
		JobID:        jobID,
		Modality:     rec.modality,
		ModelName:    rec.modelName,
		ModelVersion: rec.version,
		Score:        &score,
		Confidence:   &confidence,
	}); err != nil {
		return err
	}

	var owned []jobs.Segment
	for _, segment := range rec.segments {
		if segment.Modality != rec.modality {
			continue
		}
		segment.JobID = jobID
		owned = append(owned, segment)
	}
	if err := r.store.AddSegments(ctx, jobID, owned); err != nil {
		return err
	}

	_, err := r.store.AppendResult(ctx, jobID, rec.key, &jobs.ModalityOutcome{
		Modality:     rec.modality,
		Score:        rec.score,
		Confidence:   rec.confidence,
		Label:        scoring.LabelForScore(rec.score),
		UnitCount:    rec.unitCount,
		FlaggedCount: len(owned),
		ModelName:    rec.modelName,
		ModelVersion: rec.version,
	})
	return err
}

func (r *Runner) saveReport(ctx context.Context, jobID int64, segments []jobs.Segment) error {
	job, err := r.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	score := 0.0
	if job.OverallScore != nil {
		score = *job.OverallScore
	}

	var headline string
	switch job.Label {
	case scoring.LabelAuthentic, scoring.LabelLikelyAuthentic:
		headline = fmt.Sprintf("This media appears %s with %.0f%% confidence. No significant manipulation indicators detected.",
			job.Label, (1-score)*100)
	default:
		headline = fmt.Sprintf("Potential manipulation detected with %.0f%% suspicion score. Multiple manipulation indicators found across video, audio, and lip-sync analysis.",
			score*100)
	}

	summary := map[string]any{
		"version":     "2.0.0",
		"jobId":       jobID,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"simulated":   true,
		"headline":    headline,
		"verdict": map[string]any{
			"label":        job.Label,
			"overallScore": score,
		},
		"segmentCount": len(segments),
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.store.SaveReport(ctx, &jobs.Report{JobID: jobID, SummaryJSON: string(payload)})
}

// stageFraction fabricates an even progress climb across the stage chain,
// landing at exactly 1.0 when the walk reaches done.
func stageFraction(status jobs.Status) float64 {
	order := jobs.PipelineOrder()
	for i, s := range order {
		if s == status {
			return float64(i+1) / float64(len(order))
		}
	}
	return 1
}

// cannedSegments reproduces the demo evidence catalogue: detailed forensic
// findings for keyword-biased media, a couple of benign observations for
// clean media that still scored above the noise floor.
func cannedSegments(fake bool, videoScore, audioScore, lipsyncScore float64) []jobs.Segment {
	if fake {
		return []jobs.Segment{
			{Modality: scoring.ModalityVideo, StartMs: 1200, EndMs: 3500, Score: videoScore, Confidence: videoConfidence,
				Description: "Facial boundary blending artifacts - GAN-generated edges show inconsistent pixel gradients at jawline"},
			{Modality: scoring.ModalityVideo, StartMs: 3800, EndMs: 5200, Score: 0.81, Confidence: videoConfidence,
				Description: "Temporal flickering detected in eye region - irregular blink patterns inconsistent with natural eye movement"},
			{Modality: scoring.ModalityAudio, StartMs: 4000, EndMs: 6800, Score: audioScore, Confidence: audioConfidence,
				Description: "Voice spectrogram shows unnatural formant transitions - F0 pitch contour exhibits synthetic smoothing patterns"},
			{Modality: scoring.ModalityLipsync, StartMs: 2500, EndMs: 5500, Score: lipsyncScore, Confidence: lipsyncConfidence,
				Description: "Lip-audio desynchronization of 85-120ms - visemes do not match phoneme timing windows"},
			{Modality: scoring.ModalityVideo, StartMs: 7000, EndMs: 9200, Score: 0.74, Confidence: videoConfidence,
				Description: "Unnatural head pose transitions - motion vectors show discontinuities inconsistent with physics"},
			{Modality: scoring.ModalityAudio, StartMs: 9500, EndMs: 11000, Score: 0.69, Confidence: audioConfidence,
				Description: "Breath pattern anomaly - respiratory sounds missing or artificially inserted between words"},
		}
	}
	if videoScore > 0.12 {
		return []jobs.Segment{
			{Modality: scoring.ModalityVideo, StartMs: 5500, EndMs: 7200, Score: 0.28, Confidence: videoConfidence,
				Description: "Minor compression artifact detected - likely from video re-encoding (benign)"},
			{Modality: scoring.ModalityAudio, StartMs: 8000, EndMs: 8800, Score: 0.22, Confidence: audioConfidence,
				Description: "Slight audio clipping detected - possibly microphone distortion (benign)"},
		}
	}
	return nil
}

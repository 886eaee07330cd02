package analysis_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"veriscope/internal/analysis"
	"veriscope/internal/analysis/video"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/scoring"
	"veriscope/internal/testsupport"
)

func writeFrames(t *testing.T, dir string, count int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir frames: %v", err)
	}
	for i := 0; i < count; i++ {
		name := filepath.Join(dir, "frame_"+string(rune('a'+i))+".jpg")
		testsupport.WriteFile(t, name, 64)
	}
}

func TestStageExecutePersistsOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	media := testsupport.NewMedia(t, store, "deepfake_demo.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	framesDir := filepath.Join(t.TempDir(), "frames")
	writeFrames(t, framesDir, 4)
	updated, err := store.AppendResult(ctx, job.ID, jobs.ResultExtraction, &jobs.ExtractionSummary{
		FrameCount: 4,
		FPS:        5,
		FramesDir:  framesDir,
	})
	if err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	job.ResultsJSON = updated.ResultsJSON

	svc := video.NewService(cfg, analysis.SimulatedSource{})
	st := analysis.NewStage(cfg, store, logging.NewNop(), svc)
	if err := st.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	results, err := job.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	outcome := results.Modality(scoring.ModalityVideo)
	if outcome == nil {
		t.Fatal("video outcome not merged into results")
	}
	if outcome.Skipped {
		t.Fatalf("outcome unexpectedly skipped: %q", outcome.SkipReason)
	}
	// Keyword-biased media lands in the fake band.
	if outcome.Score <= 0.5 {
		t.Fatalf("score = %v, want > 0.5 for keyword-biased media", outcome.Score)
	}
	if outcome.UnitCount != 4 {
		t.Fatalf("unit count = %d, want 4", outcome.UnitCount)
	}

	runs, err := store.ModelRunsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ModelRunsForJob: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("model runs = %d, want 1", len(runs))
	}
	if runs[0].ModelName != cfg.Models.VideoName || runs[0].Score == nil {
		t.Fatalf("unexpected model run %+v", runs[0])
	}

	segments, err := store.SegmentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("SegmentsForJob: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("expected flagged segments for fake-band scores")
	}
}

func TestStageExecuteIdempotentOnResume(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	media := testsupport.NewMedia(t, store, "demo_clip.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	framesDir := filepath.Join(t.TempDir(), "frames")
	writeFrames(t, framesDir, 2)
	updated, err := store.AppendResult(ctx, job.ID, jobs.ResultExtraction, &jobs.ExtractionSummary{
		FrameCount: 2,
		FPS:        5,
		FramesDir:  framesDir,
	})
	if err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	job.ResultsJSON = updated.ResultsJSON

	st := analysis.NewStage(cfg, store, logging.NewNop(), video.NewService(cfg, analysis.SimulatedSource{}))
	if err := st.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Re-running after a crash-resume must not duplicate records.
	if err := st.Execute(ctx, job); err != nil {
		t.Fatalf("Execute resume: %v", err)
	}

	runs, err := store.ModelRunsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ModelRunsForJob: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("model runs = %d after resume, want 1", len(runs))
	}
}

func TestStageExecuteDisabledModality(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	media := testsupport.NewMedia(t, store, "clip.mp4")
	opts := jobs.DefaultOptions()
	opts.Video = false
	job, created, err := store.NewJob(ctx, media.ID, opts)
	if err != nil || !created {
		t.Fatalf("NewJob: created=%v err=%v", created, err)
	}

	st := analysis.NewStage(cfg, store, logging.NewNop(), video.NewService(cfg, analysis.SimulatedSource{}))
	if err := st.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	results, err := job.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if results.Modality(scoring.ModalityVideo) != nil {
		t.Fatal("disabled modality must not contribute a result")
	}

	runs, err := store.ModelRunsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ModelRunsForJob: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("model runs = %d, want 1 audit row", len(runs))
	}
	if runs[0].Score != nil {
		t.Fatalf("disabled modality should record a null score, got %v", *runs[0].Score)
	}
}

package extraction_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"veriscope/internal/extraction"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/services"
	"veriscope/internal/testsupport"
)

// fakeFFmpeg mimics the two extraction invocations: the frames pass writes
// jpg files next to the output pattern, the audio pass writes the wav.
func fakeFFmpeg(frameCount int) extraction.CommandRunner {
	return func(_ context.Context, _ string, args ...string) ([]byte, error) {
		out := args[len(args)-1]
		if filepath.Ext(out) == ".jpg" {
			dir := filepath.Dir(out)
			for i := 0; i < frameCount; i++ {
				name := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", i))
				if err := os.WriteFile(name, []byte("jpg"), 0o644); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}
		return nil, os.WriteFile(out, []byte("wav"), 0o644)
	}
}

func newExtractionJob(t *testing.T, store *jobs.Store, hasVideo, hasAudio bool) *jobs.Job {
	t.Helper()
	media := testsupport.NewMedia(t, store, "clip.mp4")
	job := testsupport.NewJob(t, store, media.ID)
	updated, err := store.AppendResult(context.Background(), job.ID, jobs.ResultMetadata, &jobs.MediaMetadata{
		Container:  "mov,mp4",
		DurationMs: 10_000,
		HasVideo:   hasVideo,
		HasAudio:   hasAudio,
	})
	if err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	job.ResultsJSON = updated.ResultsJSON
	return job
}

func TestExecuteExtractsFramesAndAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newExtractionJob(t, store, true, true)
	st := extraction.NewStage(cfg, store, logging.NewNop())
	st.SetRunner(fakeFFmpeg(5))

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
	if results.Extraction == nil {
		t.Fatal("extraction result not merged")
	}
	if results.Extraction.FrameCount != 5 {
		t.Fatalf("frame count = %d, want 5", results.Extraction.FrameCount)
	}
	if results.Extraction.FramesDir == "" || results.Extraction.AudioPath == "" {
		t.Fatalf("workspace paths missing: %+v", results.Extraction)
	}
	if _, err := os.Stat(results.Extraction.AudioPath); err != nil {
		t.Fatalf("audio track not written: %v", err)
	}
}

func TestExecuteAudioOnlySkipsFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newExtractionJob(t, store, false, true)
	st := extraction.NewStage(cfg, store, logging.NewNop())
	st.SetRunner(fakeFFmpeg(0))

	if err := st.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	results, err := job.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if results.Extraction.FramesDir != "" || results.Extraction.FrameCount != 0 {
		t.Fatalf("audio-only media should not record frames: %+v", results.Extraction)
	}
	if results.Extraction.AudioPath == "" {
		t.Fatal("audio path missing")
	}
}

func TestExecuteToolFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newExtractionJob(t, store, true, true)
	st := extraction.NewStage(cfg, store, logging.NewNop())
	st.SetRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("moov atom not found"), fmt.Errorf("exit status 1")
	})

	err := st.Execute(ctx, job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !services.IsTransient(err) {
		t.Fatalf("ffmpeg failure should be retryable, got %v", err)
	}
}

func TestExecuteIdempotentOnResume(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newExtractionJob(t, store, true, true)
	st := extraction.NewStage(cfg, store, logging.NewNop())

	var calls atomic.Int32
	st.SetRunner(func(c context.Context, name string, args ...string) ([]byte, error) {
		calls.Add(1)
		return fakeFFmpeg(2)(c, name, args...)
	})

	if err := st.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	firstCalls := calls.Load()
	if err := st.Execute(ctx, job); err != nil {
		t.Fatalf("Execute resume: %v", err)
	}
	if calls.Load() != firstCalls {
		t.Fatalf("resume re-ran ffmpeg: %d calls, want %d", calls.Load(), firstCalls)
	}
}

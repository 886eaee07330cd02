package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"veriscope/internal/jobs"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
	"veriscope/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "interview.mp4")

	job, created, err := store.NewJob(ctx, media.ID, jobs.DefaultOptions())
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if !created {
		t.Fatal("expected job to be created")
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusPending || job.Stage != jobs.StatusPending {
		t.Fatalf("expected pending stage and status, got stage=%s status=%s", job.Stage, job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.MediaID != media.ID {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	missing, err := store.GetByID(ctx, job.ID+100)
	if err != nil {
		t.Fatalf("GetByID missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %#v", missing)
	}
}

func TestRegisterMediaDeduplicatesByHash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewMedia(t, store, "clip.mp4")

	duplicate := &jobs.MediaItem{
		ID:               "another-id",
		Filename:         "clip-copy.mp4",
		OriginalFilename: "clip-copy.mp4",
		SHA256:           first.SHA256,
		FileSize:         first.FileSize,
		MediaType:        jobs.MediaVideo,
		StoragePath:      "media/clip-copy.mp4",
	}
	stored, created, err := store.RegisterMedia(ctx, duplicate)
	if err != nil {
		t.Fatalf("RegisterMedia failed: %v", err)
	}
	if created {
		t.Fatal("expected duplicate registration to reuse existing row")
	}
	if stored.ID != first.ID {
		t.Fatalf("expected existing media %s, got %s", first.ID, stored.ID)
	}

	found, err := store.GetMediaBySHA256(ctx, first.SHA256)
	if err != nil {
		t.Fatalf("GetMediaBySHA256 failed: %v", err)
	}
	if found == nil || found.ID != first.ID {
		t.Fatalf("expected to find registered media, got %#v", found)
	}
}

func TestNewJobReusesActiveJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "speech.mp4")

	first, created, err := store.NewJob(ctx, media.ID, jobs.DefaultOptions())
	if err != nil || !created {
		t.Fatalf("first NewJob: created=%v err=%v", created, err)
	}

	second, created, err := store.NewJob(ctx, media.ID, jobs.DefaultOptions())
	if err != nil {
		t.Fatalf("second NewJob: %v", err)
	}
	if created {
		t.Fatal("expected second submission to reuse the live job")
	}
	if second.ID != first.ID {
		t.Fatalf("expected job %d, got %d", first.ID, second.ID)
	}

	if _, err := store.MarkFailed(ctx, first.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	third, created, err := store.NewJob(ctx, media.ID, jobs.DefaultOptions())
	if err != nil {
		t.Fatalf("third NewJob: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh job once the previous one is terminal")
	}
	if third.ID == first.ID {
		t.Fatal("expected a new job id")
	}
}

func TestNewJobConcurrentSubmissionsShareOneJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "burst.mp4")

	const submitters = 4
	type outcome struct {
		id      int64
		created bool
		err     error
	}
	start := make(chan struct{})
	results := make(chan outcome, submitters)
	for i := 0; i < submitters; i++ {
		go func() {
			<-start
			job, created, err := store.NewJob(ctx, media.ID, jobs.DefaultOptions())
			var id int64
			if job != nil {
				id = job.ID
			}
			results <- outcome{id: id, created: created, err: err}
		}()
	}
	close(start)

	creators := 0
	ids := make(map[int64]struct{})
	for i := 0; i < submitters; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("NewJob: %v", res.err)
		}
		if res.created {
			creators++
		}
		ids[res.id] = struct{}{}
	}
	if creators != 1 {
		t.Fatalf("expected exactly one submission to create the job, got %d", creators)
	}
	if len(ids) != 1 {
		t.Fatalf("expected all submissions to converge on one job, got ids %v", ids)
	}
}

func TestClaimNextSingleWinnerUnderContention(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "contended.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	const workers = 4
	type outcome struct {
		job *jobs.Job
		err error
	}
	start := make(chan struct{})
	results := make(chan outcome, workers)
	for i := 0; i < workers; i++ {
		owner := fmt.Sprintf("worker-%d", i)
		go func() {
			<-start
			claimed, err := store.ClaimNext(ctx, owner, jobs.StatusPending)
			results <- outcome{job: claimed, err: err}
		}()
	}
	close(start)

	winners := 0
	for i := 0; i < workers; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("ClaimNext: %v", res.err)
		}
		if res.job == nil {
			continue
		}
		winners++
		if res.job.ID != job.ID {
			t.Fatalf("claimed job %d, want %d", res.job.ID, job.ID)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one worker to win the lease, got %d", winners)
	}
}

func TestAdvanceFollowsPipelineOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "walkthrough.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	order := jobs.PipelineOrder()
	for i := 0; i+1 < len(order); i++ {
		advanced, err := store.Advance(ctx, job.ID, order[i], order[i+1])
		if err != nil {
			t.Fatalf("Advance %s to %s: %v", order[i], order[i+1], err)
		}
		if advanced.Stage != order[i+1] || advanced.Status != order[i+1] {
			t.Fatalf("after advance expected %s/%s, got %s/%s", order[i+1], order[i+1], advanced.Stage, advanced.Status)
		}
	}

	if _, err := store.Advance(ctx, job.ID, jobs.StatusDone, jobs.StatusPending); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error advancing a done job, got %v", err)
	}
}

func TestAdvanceRejectsStageSkip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "skip.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	if _, err := store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusFusion); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error for stage skip, got %v", err)
	}
	if _, err := store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusFailed); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error advancing to failed, got %v", err)
	}

	current, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if current.Status != jobs.StatusPending {
		t.Fatalf("expected job untouched, got %s", current.Status)
	}
}

func TestAdvanceDetectsConcurrentMove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "race.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	if _, err := store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusValidating); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// A second mover still holding the pending snapshot loses the CAS.
	_, err := store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusValidating)
	if !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error from stale advance, got %v", err)
	}
}

func TestMarkFailedFreezesStageAndProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "failure.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	if _, err := store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusValidating); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	advanced, err := store.Advance(ctx, job.ID, jobs.StatusValidating, jobs.StatusExtracting)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}

	advanced.SetProgress("Extracting", "Sampling frames", 0.35)
	if err := store.UpdateProgress(ctx, advanced); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	failed, err := store.MarkFailed(ctx, job.ID, "ffmpeg exited with status 1")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if failed.Status != jobs.StatusFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}
	if failed.Stage != jobs.StatusExtracting {
		t.Fatalf("expected stage frozen at extracting, got %s", failed.Stage)
	}
	if failed.Progress != 0.35 {
		t.Fatalf("expected progress frozen at 0.35, got %f", failed.Progress)
	}
	if failed.ErrorMessage != "ffmpeg exited with status 1" {
		t.Fatalf("unexpected error message %q", failed.ErrorMessage)
	}
	if failed.LeaseOwner != "" || failed.LastHeartbeat != nil {
		t.Fatal("expected lease and heartbeat cleared")
	}

	if _, err := store.MarkFailed(ctx, job.ID, "again"); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error failing a terminal job, got %v", err)
	}
}

func TestSetVerdictWritesOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "verdict.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	if err := store.SetVerdict(ctx, job.ID, 0.87, scoring.LabelFake); err != nil {
		t.Fatalf("SetVerdict: %v", err)
	}

	stored, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.OverallScore == nil || *stored.OverallScore != 0.87 {
		t.Fatalf("expected overall score 0.87, got %v", stored.OverallScore)
	}
	if stored.Label != scoring.LabelFake {
		t.Fatalf("expected FAKE label, got %s", stored.Label)
	}

	if err := store.SetVerdict(ctx, job.ID, 0.2, scoring.LabelAuthentic); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error on second verdict, got %v", err)
	}
	if err := store.SetVerdict(ctx, job.ID+10, 1.5, scoring.LabelFake); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for out-of-range score, got %v", err)
	}
}

func TestAppendResultOncePerKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "results.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	updated, err := store.AppendResult(ctx, job.ID, jobs.ResultMetadata, &jobs.MediaMetadata{
		DurationMs: 9000,
		HasVideo:   true,
		HasAudio:   true,
	})
	if err != nil {
		t.Fatalf("AppendResult metadata: %v", err)
	}
	results, err := updated.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if !results.Has(jobs.ResultMetadata) {
		t.Fatal("expected metadata slot filled")
	}

	if _, err := store.AppendResult(ctx, job.ID, jobs.ResultMetadata, &jobs.MediaMetadata{}); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error on duplicate key, got %v", err)
	}

	if _, err := store.AppendResult(ctx, job.ID, jobs.ResultVideo, &jobs.MediaMetadata{}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for payload type mismatch, got %v", err)
	}

	if _, err := store.AppendResult(ctx, job.ID+50, jobs.ResultVideo, &jobs.ModalityOutcome{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}

	if _, err := store.AppendResult(ctx, job.ID, jobs.ResultVideo, &jobs.ModalityOutcome{
		Modality: scoring.ModalityVideo,
		Score:    0.9,
		Label:    scoring.LabelFake,
	}); err != nil {
		t.Fatalf("AppendResult video: %v", err)
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	results, err = final.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	keys := results.Keys()
	if len(keys) != 2 || keys[0] != jobs.ResultMetadata || keys[1] != jobs.ResultVideo {
		t.Fatalf("unexpected result keys %v", keys)
	}
}

func TestClaimNextLeasesOldestRunnable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	mediaA := testsupport.NewMedia(t, store, "first.mp4")
	mediaB := testsupport.NewMedia(t, store, "second.mp4")
	jobA := testsupport.NewJob(t, store, mediaA.ID)
	jobB := testsupport.NewJob(t, store, mediaB.ID)

	claimed, err := store.ClaimNext(ctx, "worker-1", jobs.ActiveStatuses()...)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != jobA.ID {
		t.Fatalf("expected oldest job %d, got %#v", jobA.ID, claimed)
	}
	if claimed.LeaseOwner != "worker-1" || claimed.LastHeartbeat == nil {
		t.Fatalf("expected lease recorded, got owner=%q heartbeat=%v", claimed.LeaseOwner, claimed.LastHeartbeat)
	}

	second, err := store.ClaimNext(ctx, "worker-2", jobs.ActiveStatuses()...)
	if err != nil {
		t.Fatalf("ClaimNext second: %v", err)
	}
	if second == nil || second.ID != jobB.ID {
		t.Fatalf("expected job %d for second worker, got %#v", jobB.ID, second)
	}

	third, err := store.ClaimNext(ctx, "worker-3", jobs.ActiveStatuses()...)
	if err != nil {
		t.Fatalf("ClaimNext third: %v", err)
	}
	if third != nil {
		t.Fatalf("expected no claimable job, got %#v", third)
	}
}

func TestHeartbeatRequiresLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "lease.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	claimed, err := store.ClaimNext(ctx, "worker-1", jobs.StatusPending)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: job=%#v err=%v", claimed, err)
	}

	if err := store.Heartbeat(ctx, job.ID, "worker-1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := store.Heartbeat(ctx, job.ID, "worker-9"); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error for foreign heartbeat, got %v", err)
	}

	if err := store.ReleaseLease(ctx, job.ID, "worker-1"); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}
	released, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if released.LeaseOwner != "" || released.LastHeartbeat != nil {
		t.Fatal("expected lease cleared after release")
	}
}

func TestReclaimStaleFreesExpiredLeases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	staleMedia := testsupport.NewMedia(t, store, "stale.mp4")
	freshMedia := testsupport.NewMedia(t, store, "fresh.mp4")
	staleJob := testsupport.NewJob(t, store, staleMedia.ID)
	freshJob := testsupport.NewJob(t, store, freshMedia.ID)

	past := time.Now().Add(-2 * time.Hour).UTC()
	for i, job := range []*jobs.Job{staleJob, freshJob} {
		advanced, err := store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusValidating)
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		advanced.LeaseOwner = fmt.Sprintf("worker-%d", i+1)
		if i == 0 {
			advanced.LastHeartbeat = &past
		} else {
			now := time.Now().UTC()
			advanced.LastHeartbeat = &now
		}
		if err := store.Update(ctx, advanced); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	count, err := store.ReclaimStale(ctx, time.Now().Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reclaimed, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, staleJob.ID)
	if err != nil {
		t.Fatalf("GetByID stale: %v", err)
	}
	if reclaimed.LeaseOwner != "" || reclaimed.LastHeartbeat != nil {
		t.Fatal("expected stale lease cleared")
	}
	if reclaimed.Status != jobs.StatusValidating || reclaimed.Stage != jobs.StatusValidating {
		t.Fatalf("expected stage preserved for resume, got stage=%s status=%s", reclaimed.Stage, reclaimed.Status)
	}

	untouched, err := store.GetByID(ctx, freshJob.ID)
	if err != nil {
		t.Fatalf("GetByID fresh: %v", err)
	}
	if untouched.LeaseOwner == "" || untouched.LastHeartbeat == nil {
		t.Fatal("expected fresh lease preserved")
	}
}

func TestRetryFailedQueuesFreshJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "retry.mp4")
	opts := jobs.DefaultOptions()
	opts.Lipsync = false
	job, _, err := store.NewJob(ctx, media.ID, opts)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if _, err := store.Advance(ctx, job.ID, jobs.StatusPending, jobs.StatusValidating); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := store.Advance(ctx, job.ID, jobs.StatusValidating, jobs.StatusExtracting); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := store.MarkFailed(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	queued, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected 1 job queued, got %d", queued)
	}

	prior, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if prior.Status != jobs.StatusFailed || prior.ErrorMessage != "boom" {
		t.Fatalf("expected failed job untouched, got status=%s error=%q", prior.Status, prior.ErrorMessage)
	}

	fresh, err := store.FindActiveByMedia(ctx, media.ID)
	if err != nil {
		t.Fatalf("FindActiveByMedia: %v", err)
	}
	if fresh == nil || fresh.ID == job.ID {
		t.Fatalf("expected a fresh job for the media, got %+v", fresh)
	}
	if fresh.Status != jobs.StatusPending || fresh.Stage != jobs.StatusPending {
		t.Fatalf("expected fresh job pending, got stage=%s status=%s", fresh.Stage, fresh.Status)
	}
	freshOpts, err := fresh.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if freshOpts.Lipsync {
		t.Fatal("expected submission options carried over to the fresh job")
	}

	queued, err = store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed again: %v", err)
	}
	if queued != 0 {
		t.Fatalf("expected live job to block a second retry, got %d", queued)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	mediaA := testsupport.NewMedia(t, store, "a.mp4")
	mediaB := testsupport.NewMedia(t, store, "b.mp4")
	mediaC := testsupport.NewMedia(t, store, "c.mp4")
	a := testsupport.NewJob(t, store, mediaA.ID)
	b := testsupport.NewJob(t, store, mediaB.ID)
	c := testsupport.NewJob(t, store, mediaC.ID)

	if _, err := store.Advance(ctx, b.ID, jobs.StatusPending, jobs.StatusValidating); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := store.MarkFailed(ctx, c.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(items))
	}
	if items[0].ID != a.ID || items[1].ID != b.ID || items[2].ID != c.ID {
		t.Fatalf("expected order A,B,C, got IDs %d,%d,%d", items[0].ID, items[1].ID, items[2].ID)
	}

	filtered, err := store.List(ctx, jobs.StatusValidating, jobs.StatusFailed)
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(filtered))
	}
	if filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered order: got %d,%d", filtered[0].ID, filtered[1].ID)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	mediaA := testsupport.NewMedia(t, store, "stats-a.mp4")
	mediaB := testsupport.NewMedia(t, store, "stats-b.mp4")
	a := testsupport.NewJob(t, store, mediaA.ID)
	testsupport.NewJob(t, store, mediaB.ID)

	if _, err := store.Advance(ctx, a.ID, jobs.StatusPending, jobs.StatusValidating); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StatusPending] != 1 || stats[jobs.StatusValidating] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Processing != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.TableExists || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected database health: %#v", dbHealth)
	}
	if len(dbHealth.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", dbHealth.MissingColumns)
	}
}

func TestSegmentsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "segments.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	segments := []jobs.Segment{
		{JobID: job.ID, Modality: scoring.ModalityAudio, StartMs: 5000, EndMs: 10000, Score: 0.8, Confidence: 0.6, Description: "Audio spectral anomaly detected"},
		{JobID: job.ID, Modality: scoring.ModalityVideo, StartMs: 1000, EndMs: 1200, Score: 0.9, Confidence: 0.7, Description: "Potential manipulation detected in frame"},
	}
	if err := store.AddSegments(ctx, job.ID, segments); err != nil {
		t.Fatalf("AddSegments: %v", err)
	}

	stored, err := store.SegmentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("SegmentsForJob: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(stored))
	}
	if stored[0].StartMs != 1000 || stored[1].StartMs != 5000 {
		t.Fatalf("expected segments ordered by start time, got %d then %d", stored[0].StartMs, stored[1].StartMs)
	}

	bad := []jobs.Segment{{JobID: job.ID, Modality: scoring.ModalityVideo, StartMs: 500, EndMs: 500}}
	if err := store.AddSegments(ctx, job.ID, bad); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for empty range, got %v", err)
	}
}

func TestModelRunsRecordNullScores(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "runs.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	score := 0.91
	confidence := 0.74
	scored := &jobs.ModelRun{
		JobID:           job.ID,
		Modality:        scoring.ModalityVideo,
		ModelName:       "video_forensics_vit",
		ModelVersion:    "v1.0.0",
		Score:           &score,
		Confidence:      &confidence,
		InferenceTimeMs: 420,
	}
	if err := store.RecordModelRun(ctx, scored); err != nil {
		t.Fatalf("RecordModelRun: %v", err)
	}
	if scored.ID == 0 {
		t.Fatal("expected run id assigned")
	}

	skipped := &jobs.ModelRun{
		JobID:        job.ID,
		Modality:     scoring.ModalityLipsync,
		ModelName:    "lipsync_verifier",
		ModelVersion: "v1.0.0",
	}
	if err := store.RecordModelRun(ctx, skipped); err != nil {
		t.Fatalf("RecordModelRun skipped: %v", err)
	}

	runs, err := store.ModelRunsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ModelRunsForJob: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Score == nil || *runs[0].Score != 0.91 {
		t.Fatalf("expected scored run first, got %#v", runs[0])
	}
	if runs[1].Score != nil {
		t.Fatalf("expected skipped run to keep a null score, got %v", *runs[1].Score)
	}
}

func TestSaveReportOncePerJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	media := testsupport.NewMedia(t, store, "report.mp4")
	job := testsupport.NewJob(t, store, media.ID)

	report := &jobs.Report{
		JobID:        job.ID,
		SummaryJSON:  `{"score":0.87,"label":"FAKE"}`,
		ArtifactPath: "reports/job-1.json",
	}
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if report.ID == 0 {
		t.Fatal("expected report id assigned")
	}

	if err := store.SaveReport(ctx, &jobs.Report{JobID: job.ID, SummaryJSON: "{}"}); !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error for second report, got %v", err)
	}

	fetched, err := store.GetReportByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetReportByJob: %v", err)
	}
	if fetched == nil || fetched.ID != report.ID {
		t.Fatalf("expected stored report, got %#v", fetched)
	}

	none, err := store.GetReportByJob(ctx, job.ID+99)
	if err != nil {
		t.Fatalf("GetReportByJob missing: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil report for unknown job, got %#v", none)
	}
}

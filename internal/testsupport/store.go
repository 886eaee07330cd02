package testsupport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewMedia registers a media item for tests. The content hash is derived
// from the filename so distinct names never collide.
func NewMedia(t testing.TB, store *jobs.Store, filename string) *jobs.MediaItem {
	t.Helper()

	sum := sha256.Sum256([]byte(filename))
	item := &jobs.MediaItem{
		ID:               uuid.NewString(),
		Filename:         filename,
		OriginalFilename: filename,
		SHA256:           hex.EncodeToString(sum[:]),
		FileSize:         4096,
		MediaType:        jobs.MediaVideo,
		MimeType:         "video/mp4",
		StoragePath:      filepath.Join("media", filename),
	}
	stored, _, err := store.RegisterMedia(context.Background(), item)
	if err != nil {
		t.Fatalf("store.RegisterMedia: %v", err)
	}
	return stored
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, mediaID string) *jobs.Job {
	t.Helper()

	job, _, err := store.NewJob(context.Background(), mediaID, jobs.DefaultOptions())
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

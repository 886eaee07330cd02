package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"veriscope/internal/logging"
)

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	oldDir := filepath.Join(tmpDir, "job-1")
	if err := os.Mkdir(oldDir, 0o755); err != nil {
		t.Fatalf("create old dir: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldDir, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	recentDir := filepath.Join(tmpDir, "job-2")
	if err := os.Mkdir(recentDir, 0o755); err != nil {
		t.Fatalf("create recent dir: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 {
		t.Fatalf("expected 1 removed, got %d", len(result.Removed))
	}
	if result.Removed[0] != oldDir {
		t.Errorf("expected %s to be removed, got %s", oldDir, result.Removed[0])
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent directory should still exist")
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	tmpDir := t.TempDir()

	oldFile := filepath.Join(tmpDir, "old-file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should not have been removed")
	}
}

func TestCleanOrphanedEmptyDir(t *testing.T) {
	for _, dir := range []string{"", "   "} {
		result := CleanOrphaned(context.Background(), dir, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanOrphanedRemovesInactiveJobWorkspaces(t *testing.T) {
	tmpDir := t.TempDir()

	activeDir := filepath.Join(tmpDir, "job-7")
	if err := os.Mkdir(activeDir, 0o755); err != nil {
		t.Fatalf("create active dir: %v", err)
	}
	orphanDir := filepath.Join(tmpDir, "job-8")
	if err := os.Mkdir(orphanDir, 0o755); err != nil {
		t.Fatalf("create orphan dir: %v", err)
	}

	activeJobs := map[int64]struct{}{7: {}}

	result := CleanOrphaned(context.Background(), tmpDir, activeJobs, logging.NewNop())

	if len(result.Removed) != 1 {
		t.Fatalf("expected 1 removed, got %d", len(result.Removed))
	}
	if result.Removed[0] != orphanDir {
		t.Errorf("expected %s to be removed, got %s", orphanDir, result.Removed[0])
	}
	if _, err := os.Stat(orphanDir); !os.IsNotExist(err) {
		t.Error("orphan workspace should have been removed")
	}
	if _, err := os.Stat(activeDir); err != nil {
		t.Error("active workspace should still exist")
	}
}

func TestCleanOrphanedSkipsForeignDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	foreignDir := filepath.Join(tmpDir, "scratch")
	if err := os.Mkdir(foreignDir, 0o755); err != nil {
		t.Fatalf("create foreign dir: %v", err)
	}
	orphanDir := filepath.Join(tmpDir, "job-3")
	if err := os.Mkdir(orphanDir, 0o755); err != nil {
		t.Fatalf("create orphan dir: %v", err)
	}

	result := CleanOrphaned(context.Background(), tmpDir, map[int64]struct{}{}, logging.NewNop())

	if len(result.Removed) != 1 {
		t.Fatalf("expected 1 removed, got %d: %v", len(result.Removed), result.Removed)
	}
	if result.Removed[0] != orphanDir {
		t.Errorf("expected orphan workspace removed, got %s", result.Removed[0])
	}
	if _, err := os.Stat(foreignDir); err != nil {
		t.Error("foreign directory should still exist")
	}
}

func TestListDirectoriesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		dirs, err := ListDirectories(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if dirs != nil {
			t.Errorf("expected nil for path %q, got %v", path, dirs)
		}
	}
}

func TestListDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	dir1 := filepath.Join(tmpDir, "job-1")
	if err := os.Mkdir(dir1, 0o755); err != nil {
		t.Fatalf("create dir1: %v", err)
	}
	dir2 := filepath.Join(tmpDir, "job-2")
	if err := os.Mkdir(dir2, 0o755); err != nil {
		t.Fatalf("create dir2: %v", err)
	}
	file := filepath.Join(tmpDir, "not-a-dir.txt")
	if err := os.WriteFile(file, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	innerFile := filepath.Join(dir1, "data.bin")
	if err := os.WriteFile(innerFile, []byte("12345"), 0o644); err != nil {
		t.Fatalf("create inner file: %v", err)
	}

	dirs, err := ListDirectories(tmpDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 directories, got %d", len(dirs))
	}

	var foundDir1 bool
	for _, d := range dirs {
		if d.Name == "job-1" {
			foundDir1 = true
			if d.Size != 5 {
				t.Errorf("dir1 size = %d, want 5", d.Size)
			}
			if d.Path != dir1 {
				t.Errorf("dir1 path = %q, want %q", d.Path, dir1)
			}
			if d.ModTime.IsZero() {
				t.Error("ModTime should not be zero")
			}
		}
	}
	if !foundDir1 {
		t.Error("did not find job-1 in results")
	}
}

func TestParseJobDir(t *testing.T) {
	cases := []struct {
		name string
		id   int64
		ok   bool
	}{
		{"job-12", 12, true},
		{"job-1", 1, true},
		{"job-", 0, false},
		{"job-abc", 0, false},
		{"scratch", 0, false},
	}
	for _, tc := range cases {
		id, ok := ParseJobDir(tc.name)
		if ok != tc.ok || id != tc.id {
			t.Errorf("ParseJobDir(%q) = (%d, %v), want (%d, %v)", tc.name, id, ok, tc.id, tc.ok)
		}
	}
}

package media

import (
	"os"
	"path/filepath"
	"testing"

	"veriscope/internal/jobs"
)

func TestChecksumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, size, err := ChecksumFile(path)
	if err != nil {
		t.Fatal(err)
	}
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if hash != want {
		t.Fatalf("hash mismatch: got %s, want %s", hash, want)
	}
	if size != int64(len("hello world")) {
		t.Fatalf("size mismatch: got %d", size)
	}
}

func TestChecksumFileMissing(t *testing.T) {
	if _, _, err := ChecksumFile(filepath.Join(t.TempDir(), "absent.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestKindForPath(t *testing.T) {
	cases := []struct {
		path string
		want jobs.MediaType
		ok   bool
	}{
		{"clip.mp4", jobs.MediaVideo, true},
		{"CLIP.MKV", jobs.MediaVideo, true},
		{"/tmp/interview.webm", jobs.MediaVideo, true},
		{"voice.mp3", jobs.MediaAudio, true},
		{"voice.FLAC", jobs.MediaAudio, true},
		{"notes.txt", "", false},
		{"noextension", "", false},
	}
	for _, tc := range cases {
		got, ok := KindForPath(tc.path)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("KindForPath(%q) = (%q, %v), want (%q, %v)", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMIMEForPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"clip.mp4", "video/mp4"},
		{"clip.MOV", "video/quicktime"},
		{"voice.flac", "audio/flac"},
		{"mystery.zzz", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := MIMEForPath(tc.path); got != tc.want {
			t.Fatalf("MIMEForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestStoredName(t *testing.T) {
	if got := StoredName("abc-123", "Interview.MP4"); got != "abc-123.mp4" {
		t.Fatalf("unexpected stored name: %s", got)
	}
	if got := StoredName("abc-123", "noextension"); got != "abc-123" {
		t.Fatalf("unexpected stored name without extension: %s", got)
	}
}

package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const jobDirPrefix = "job-"

// Workspace is the scratch directory one job stages extraction artifacts in:
// sampled frames under frames/, the mono WAV next to them. The layout is
// stable so a resumed job finds the artifacts a previous attempt produced.
type Workspace struct {
	Root string
}

// WorkspaceFor derives the workspace location for a job.
func WorkspaceFor(stagingDir string, jobID int64) Workspace {
	return Workspace{Root: filepath.Join(stagingDir, fmt.Sprintf("%s%d", jobDirPrefix, jobID))}
}

// FramesDir is where extraction renders sampled frames.
func (w Workspace) FramesDir() string {
	return filepath.Join(w.Root, "frames")
}

// AudioPath is where extraction writes the 16 kHz mono WAV.
func (w Workspace) AudioPath() string {
	return filepath.Join(w.Root, "audio.wav")
}

// TranscriptDir is where the transcription engine drops its output files.
func (w Workspace) TranscriptDir() string {
	return filepath.Join(w.Root, "transcript")
}

// Ensure creates the workspace directory tree.
func (w Workspace) Ensure() error {
	for _, dir := range []string{w.Root, w.FramesDir(), w.TranscriptDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workspace directory %q: %w", dir, err)
		}
	}
	return nil
}

// Remove deletes the workspace and everything staged in it.
func (w Workspace) Remove() error {
	if strings.TrimSpace(w.Root) == "" {
		return nil
	}
	return os.RemoveAll(w.Root)
}

// Exists reports whether the workspace directory is present.
func (w Workspace) Exists() bool {
	info, err := os.Stat(w.Root)
	return err == nil && info.IsDir()
}

// ParseJobDir extracts the job ID from a workspace directory name.
func ParseJobDir(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, jobDirPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

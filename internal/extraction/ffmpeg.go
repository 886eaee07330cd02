// Package extraction renders the raw inputs inference works on: sampled
// frames and a normalized audio track, produced by ffmpeg in the job's
// staging workspace.
package extraction

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner executes an external command and returns its combined
// output. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// framePattern names extracted frames so a lexical sort restores sample
// order.
const framePattern = "frame_%06d.jpg"

// Extractor wraps the ffmpeg invocations used by the extraction stage.
type Extractor struct {
	Binary string
	Runner CommandRunner
}

// NewExtractor builds an extractor around the configured ffmpeg binary.
func NewExtractor(binary string) *Extractor {
	return &Extractor{Binary: binary}
}

func (e *Extractor) run(ctx context.Context, args ...string) error {
	runner := e.Runner
	if runner == nil {
		runner = runCommand
	}
	output, err := runner(ctx, e.Binary, args...)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return fmt.Errorf("%s: %s", e.Binary, detail)
	}
	return nil
}

// ExtractFrames samples the video track at fps frames per second into dir
// and returns the number of frames written. Re-running into the same
// directory overwrites the previous render.
func (e *Extractor) ExtractFrames(ctx context.Context, src string, fps int, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create frames dir: %w", err)
	}
	if err := e.run(ctx,
		"-hide_banner", "-loglevel", "error",
		"-i", src,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-y",
		filepath.Join(dir, framePattern),
	); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".jpg" {
			count++
		}
	}
	return count, nil
}

// ExtractAudio renders the audio track as 16 kHz mono PCM WAV at dst, the
// sample format the spoof detector and transcriber both expect.
func (e *Extractor) ExtractAudio(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	return e.run(ctx,
		"-hide_banner", "-loglevel", "error",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		dst,
	)
}

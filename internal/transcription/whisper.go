// Package transcription turns the extracted audio track into text with
// word-level timings using a whisper CLI. A missing engine degrades to an
// empty transcript instead of failing the job.
package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"veriscope/internal/jobs"
)

// CommandRunner executes the transcription command and returns its combined
// output. Tests substitute a fake that writes the expected JSON document.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Transcriber wraps a whisper-style CLI that writes a JSON transcript next
// to the requested output directory.
type Transcriber struct {
	Binary string
	Model  string
	Runner CommandRunner
}

// NewTranscriber builds a transcriber around the configured binary and model.
func NewTranscriber(binary, model string) *Transcriber {
	return &Transcriber{Binary: binary, Model: model}
}

// whisperOutput mirrors the JSON document the whisper CLI emits with
// --output_format json and word timestamps enabled.
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Words []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe runs the engine over the audio track and parses the resulting
// JSON into a transcript summary with word timings.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, outDir string) (*jobs.TranscriptSummary, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	runner := t.Runner
	if runner == nil {
		runner = runCommand
	}
	output, err := runner(ctx, t.Binary,
		audioPath,
		"--model", t.Model,
		"--word_timestamps", "True",
		"--output_format", "json",
		"--output_dir", outDir,
	)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%s: %s", t.Binary, detail)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	payload, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}

	summary := &jobs.TranscriptSummary{
		Language: parsed.Language,
		Text:     strings.TrimSpace(parsed.Text),
	}
	for _, segment := range parsed.Segments {
		for _, word := range segment.Words {
			summary.Words = append(summary.Words, jobs.TranscriptWord{
				Word:       strings.TrimSpace(word.Word),
				StartMs:    int64(word.Start * 1000),
				EndMs:      int64(word.End * 1000),
				Confidence: word.Probability,
			})
		}
	}
	summary.WordCount = len(summary.Words)
	return summary, nil
}

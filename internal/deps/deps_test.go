package deps

import (
	"os"
	"path/filepath"
	"testing"

	"veriscope/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unconfigured", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available {
		t.Fatalf("expected unconfigured command to be unavailable")
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[2].Detail)
	}
}

func TestRequirementsFollowConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.Enabled = true
	cfg.Analysis.Simulate = true

	reqs := Requirements(&cfg)
	names := make(map[string]Requirement, len(reqs))
	for _, req := range reqs {
		names[req.Name] = req
	}

	if _, ok := names["FFmpeg"]; !ok {
		t.Error("expected FFmpeg requirement")
	}
	if _, ok := names["FFprobe"]; !ok {
		t.Error("expected FFprobe requirement")
	}
	whisper, ok := names["Whisper"]
	if !ok {
		t.Fatal("expected Whisper requirement when transcription is enabled")
	}
	if !whisper.Optional {
		t.Error("Whisper should be optional")
	}
	if _, ok := names["Video model"]; ok {
		t.Error("model commands should not be listed while simulating")
	}

	cfg.Analysis.Simulate = false
	cfg.Analysis.VideoCommand = "detect-video"
	cfg.Transcription.Enabled = false

	reqs = Requirements(&cfg)
	names = make(map[string]Requirement, len(reqs))
	for _, req := range reqs {
		names[req.Name] = req
	}
	if _, ok := names["Whisper"]; ok {
		t.Error("Whisper should not be listed when transcription is disabled")
	}
	if _, ok := names["Video model"]; !ok {
		t.Error("expected video model requirement with simulation off")
	}
	if _, ok := names["Audio model"]; ok {
		t.Error("unconfigured model commands should be omitted")
	}
}

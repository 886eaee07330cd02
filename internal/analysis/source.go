package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"veriscope/internal/config"
	"veriscope/internal/logging"
	"veriscope/internal/scoring"
	"veriscope/internal/services"
	"veriscope/internal/simulation"
)

// Source produces one score per unit for a modality. Implementations return
// values that Run clamps into [0, 1], so a source never has to fail just
// because a model emitted an out-of-range number.
type Source interface {
	Scores(ctx context.Context, modality scoring.Modality, in StageInputs, units []Unit) ([]float64, error)
}

// SimulatedSource draws deterministic scores seeded from the media identity,
// biased into the manipulated band when the original filename carries a demo
// keyword. Identical media always yields identical scores.
type SimulatedSource struct{}

func (SimulatedSource) Scores(_ context.Context, modality scoring.Modality, in StageInputs, units []Unit) ([]float64, error) {
	basis := in.SHA256
	if basis == "" {
		basis = in.Filename
	}
	return simulation.Scores(basis, modality, simulation.KnownFake(in.Filename), len(units)), nil
}

// CommandRunner executes an external inference command with the given stdin
// payload and returns its stdout. Tests substitute a fake.
type CommandRunner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%s: %s", name, detail)
	}
	return stdout.Bytes(), nil
}

// commandRequest is the JSON document a model-backed command reads on stdin.
type commandRequest struct {
	Modality  scoring.Modality `json:"modality"`
	MediaPath string           `json:"mediaPath,omitempty"`
	FramesDir string           `json:"framesDir,omitempty"`
	AudioPath string           `json:"audioPath,omitempty"`
	Units     []Unit           `json:"units"`
}

// CommandSource shells out to an external inference command. The command
// receives a JSON request on stdin and must print a JSON array with exactly
// one score per unit on stdout. A non-zero exit is a transient failure the
// orchestrator may retry.
type CommandSource struct {
	Command string
	Runner  CommandRunner
}

func (s CommandSource) Scores(ctx context.Context, modality scoring.Modality, in StageInputs, units []Unit) ([]float64, error) {
	runner := s.Runner
	if runner == nil {
		runner = runCommand
	}

	request, err := json.Marshal(commandRequest{
		Modality:  modality,
		MediaPath: in.MediaPath,
		FramesDir: in.FramesDir,
		AudioPath: in.AudioPath,
		Units:     units,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrState, "analysis", "predict", "Failed to encode inference request", err)
	}

	stdout, err := runner(ctx, request, s.Command)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "predict",
			fmt.Sprintf("Inference command for %s failed", modality), err)
	}

	var scores []float64
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &scores); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "predict",
			fmt.Sprintf("Inference command for %s produced unparseable output", modality), err)
	}
	if len(scores) != len(units) {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "predict",
			fmt.Sprintf("Inference command for %s returned %d scores for %d units", modality, len(scores), len(units)), nil)
	}
	return scores, nil
}

// SourceFor selects the score source for a modality: the configured
// model-backed command when simulation is off and the command resolves on
// PATH, the deterministic simulated source otherwise.
func SourceFor(cfg *config.Config, modality scoring.Modality, logger *slog.Logger) Source {
	if cfg == nil || cfg.Analysis.Simulate {
		return SimulatedSource{}
	}

	var command string
	switch modality {
	case scoring.ModalityVideo:
		command = cfg.Analysis.VideoCommand
	case scoring.ModalityAudio:
		command = cfg.Analysis.AudioCommand
	case scoring.ModalityLipsync:
		command = cfg.Analysis.LipsyncCommand
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return SimulatedSource{}
	}
	if _, err := exec.LookPath(command); err != nil {
		if logger != nil {
			logger.Warn("inference command not found, falling back to simulated scoring",
				logging.String(logging.FieldModality, string(modality)),
				logging.String("command", command))
		}
		return SimulatedSource{}
	}
	return CommandSource{Command: command}
}

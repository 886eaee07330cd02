// Package validation implements the first pipeline stage: confirming the
// submitted file is present, uncorrupted, and a decodable media container
// before any expensive analysis starts.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/media"
	"veriscope/internal/services"
	"veriscope/internal/stage"
)

// lookPath allows tests to control binary resolution.
var lookPath = exec.LookPath

// ProbeFunc inspects a media container and condenses its stream layout.
type ProbeFunc func(ctx context.Context, binary, path string) (*jobs.MediaMetadata, error)

// Stage verifies the stored media file and records container metadata.
type Stage struct {
	cfg    *config.Config
	store  *jobs.Store
	probe  ProbeFunc
	logger *slog.Logger
}

// NewStage constructs the validation pipeline stage.
func NewStage(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:    cfg,
		store:  store,
		probe:  media.Probe,
		logger: logging.NewComponentLogger(logger, "validation"),
	}
}

// SetProbe substitutes the container probe, for tests.
func (s *Stage) SetProbe(probe ProbeFunc) {
	s.probe = probe
}

// Prepare primes job progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "validation", "prepare", "Validation stage is not configured", nil)
	}
	job.BeginStage("Validating", "Validating media file")
	return s.store.UpdateProgress(ctx, job)
}

// Execute re-verifies the stored file against its recorded checksum and
// probes the container. A checksum mismatch is an integrity failure and
// never retried; probe failures are external tool errors and retryable.
func (s *Stage) Execute(ctx context.Context, job *jobs.Job) error {
	if s == nil || s.cfg == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "validation", "execute", "Validation stage is not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	results, err := job.Results()
	if err != nil {
		return services.Wrap(services.ErrState, "validation", "decode results", "", err)
	}
	if results.Metadata != nil {
		logger.Debug("metadata already recorded; skipping")
		return nil
	}

	item, err := s.store.GetMedia(ctx, job.MediaID)
	if err != nil {
		return err
	}
	if !s.cfg.ExtensionAllowed(item.OriginalFilename) {
		return services.Wrap(services.ErrInput, "validation", "check extension",
			fmt.Sprintf("unsupported media type %q", item.OriginalFilename), nil)
	}

	info, err := os.Stat(item.StoragePath)
	if err != nil {
		return services.Wrap(services.ErrInput, "validation", "stat media", "media file missing from storage", err)
	}
	if max := s.cfg.MaxMediaBytes(); max > 0 && info.Size() > max {
		return services.Wrap(services.ErrInput, "validation", "check size",
			fmt.Sprintf("media file exceeds %d byte limit", max), nil)
	}

	hash, _, err := media.ChecksumFile(item.StoragePath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "validation", "hash media", "", err)
	}
	if hash != item.SHA256 {
		return services.Wrap(services.ErrIntegrity, "validation", "verify hash",
			"file hash mismatch - file may be corrupted", nil)
	}

	meta, err := s.probe(ctx, s.cfg.FFprobeBinary(), item.StoragePath)
	if err != nil {
		return err
	}
	if !meta.HasVideo && !meta.HasAudio {
		return services.Wrap(services.ErrInput, "validation", "check streams",
			"no decodable audio or video streams", nil)
	}

	if meta.DurationMs > 0 {
		if err := s.store.SetMediaDuration(ctx, item.ID, meta.DurationMs); err != nil {
			return err
		}
	}

	updated, err := s.store.AppendResult(ctx, job.ID, jobs.ResultMetadata, meta)
	if err != nil {
		return err
	}
	job.ResultsJSON = updated.ResultsJSON
	job.ProgressMessage = fmt.Sprintf("Validated %s container", meta.Container)
	logger.Info("media validated",
		logging.String(logging.FieldMediaID, item.ID),
		logging.String("container", meta.Container),
		logging.Int64("duration_ms", meta.DurationMs),
		logging.Bool("has_video", meta.HasVideo),
		logging.Bool("has_audio", meta.HasAudio),
	)
	return nil
}

// HealthCheck reports validation stage readiness. Validation cannot run
// without ffprobe so a missing binary makes the stage unhealthy.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "validation"
	if s == nil || s.cfg == nil || s.store == nil {
		return stage.Unhealthy(name, "validation stage is not configured")
	}
	if _, err := lookPath(s.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffprobe binary %q not found", s.cfg.FFprobeBinary()))
	}
	return stage.Healthy(name)
}

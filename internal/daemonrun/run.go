package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"veriscope/internal/config"
	"veriscope/internal/daemon"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/notifications"
	"veriscope/internal/pipeline"
	"veriscope/internal/preflight"
	"veriscope/internal/staging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the veriscope daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("veriscope-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update veriscope.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "veriscope-*.log", Exclude: []string{logPath}},
	)

	results := preflight.RunAll(signalCtx, cfg)
	logPreflight(logger, results)
	if !preflight.Ready(results) {
		return fmt.Errorf("preflight checks failed; see log for details")
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "veriscope.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	cleanupStaging(signalCtx, cfg, store, logger)

	notifier := notifications.NewService(cfg)
	manager := pipeline.New(cfg, store, logger, notifier)
	stages, err := pipeline.BuildStages(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("build pipeline stages: %w", err)
	}
	manager.ConfigureStages(stages)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "daemon will not process jobs"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("veriscope daemon shutting down")
	return nil
}

// staleWorkspaceAge is how long an abandoned job workspace may linger in the
// staging directory before startup cleanup removes it.
const staleWorkspaceAge = 7 * 24 * time.Hour

// cleanupStaging reclaims workspaces left behind by crashed runs: first any
// workspace whose job is no longer live, then anything old enough that no
// resumable job can still want it.
func cleanupStaging(ctx context.Context, cfg *config.Config, store *jobs.Store, logger *slog.Logger) {
	active := make(map[int64]struct{})
	list, err := store.List(ctx)
	if err != nil {
		logger.Warn("list jobs for staging cleanup", logging.Error(err))
		return
	}
	for _, job := range list {
		if !jobs.IsTerminal(job.Status) {
			active[job.ID] = struct{}{}
		}
	}
	staging.CleanOrphaned(ctx, cfg.Paths.StagingDir, active, logger)
	staging.CleanStale(ctx, cfg.Paths.StagingDir, staleWorkspaceAge, logger)
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, result := range results {
		attrs := []logging.Attr{
			logging.String("check", result.Name),
			logging.Bool("passed", result.Passed),
		}
		if result.Detail != "" {
			attrs = append(attrs, logging.String("detail", result.Detail))
		}
		if result.Passed {
			logger.Info("preflight check", logging.Args(attrs...)...)
		} else {
			logger.Warn("preflight check failed", logging.Args(attrs...)...)
		}
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "veriscope.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

package daemon_test

import (
	"context"
	"testing"

	"veriscope/internal/daemon"
	"veriscope/internal/logging"
	"veriscope/internal/pipeline"
	"veriscope/internal/testsupport"
)

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := pipeline.New(cfg, store, logger, nil)
	stages, err := pipeline.BuildStages(cfg, store, logger)
	if err != nil {
		t.Fatalf("BuildStages: %v", err)
	}
	mgr.ConfigureStages(stages)
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Pipeline.Running {
		t.Fatal("expected pipeline to report running")
	}
	if status.LockFilePath == "" || status.DatabasePath == "" {
		t.Fatalf("expected populated paths, got %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start on the same daemon to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonRestartsAfterStop(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	d.Stop()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	d.Stop()
}

func TestDaemonRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected constructor to reject nil dependencies")
	}
}

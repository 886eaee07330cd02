package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, store, and dependency status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Veriscope", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				if !ctx.configExists {
					fmt.Fprintln(out, renderStatusLine("Config file", statusWarn, "not found; defaults in effect", colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, store.Path(), colorize))

				if pid, ok := daemonPID(cfg); ok {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", pid), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				}

				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo,
					fmt.Sprintf("%d total / %d pending / %d processing / %d failed / %d done",
						health.Total, health.Pending, health.Processing, health.Failed, health.Done), colorize))

				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				return nil
			})
		},
	}
}

// daemonPID reads the daemon PID file and verifies the process still exists.
func daemonPID(cfg *config.Config) (int, bool) {
	raw, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "veriscope.pid"))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if err := syscall.Kill(pid, 0); err != nil {
		return 0, false
	}
	return pid, true
}

package preflight

import (
	"context"

	"veriscope/internal/config"
	"veriscope/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Reports directory", cfg.Paths.ReportsDir),
		CheckDirectoryAccess("Media directory", cfg.MediaDir()),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Command
		} else if status.Optional {
			// Optional tools degrade instead of blocking startup.
			result.Passed = true
		}
		results = append(results, result)
	}

	return results
}

// Ready reports whether every check passed.
func Ready(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

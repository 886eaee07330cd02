package pipeline

import (
	"context"

	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/stage"
)

// StatusSummary represents lightweight pipeline diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	LastError   string
	JobStats    map[jobs.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest pipeline information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	running := m.running
	lastErr := m.lastErr
	workers := m.workers
	stages := make([]pipelineStage, len(m.stages))
	copy(stages, m.stages)
	m.mu.Unlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Workers:     workers,
		JobStats:    stats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/notifications"
)

// Manager coordinates job processing using the registered stage handlers.
type Manager struct {
	cfg      *config.Config
	store    *jobs.Store
	logger   *slog.Logger
	notifier notifications.Service

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	heartbeatInterval  time.Duration
	heartbeatTimeout   time.Duration
	stageRetryDelay    time.Duration
	stageTimeout       time.Duration
	stageAttempts      int
	workers            int

	stages       []pipelineStage
	stageByStart map[jobs.Status]pipelineStage
	claimable    []jobs.Status

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// New constructs a pipeline manager. Stages must be configured before Start.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Manager{
		cfg:                cfg,
		store:              store,
		logger:             logging.NewComponentLogger(logger, "pipeline"),
		notifier:           notifier,
		pollInterval:       secondsOr(cfg.Workflow.QueuePollInterval, 2*time.Second),
		errorRetryInterval: secondsOr(cfg.Workflow.ErrorRetryInterval, 5*time.Second),
		heartbeatInterval:  secondsOr(cfg.Workflow.HeartbeatInterval, 10*time.Second),
		heartbeatTimeout:   secondsOr(cfg.Workflow.HeartbeatTimeout, 120*time.Second),
		stageRetryDelay:    secondsOr(cfg.Workflow.StageRetryDelay, time.Second),
		stageTimeout:       secondsOr(cfg.Workflow.StageTimeout, 0),
		stageAttempts:      attemptsOr(cfg.Workflow.StageAttempts, 3),
		workers:            workersOr(cfg.Workflow.Workers, 2),
	}
}

// ConfigureStages wires the stage handlers the workers will execute.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stages = set.bindings()
	m.stageByStart = make(map[jobs.Status]pipelineStage, len(m.stages))
	m.claimable = make([]jobs.Status, 0, len(m.stages)+1)
	m.claimable = append(m.claimable, jobs.StatusPending)
	for _, stg := range m.stages {
		m.stageByStart[stg.status] = stg
		m.claimable = append(m.claimable, stg.status)
	}
}

// Start spawns the worker pool and the stale-lease reclaim monitor.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("pipeline already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("pipeline stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	host, _ := os.Hostname()
	if host == "" {
		host = "veriscope"
	}
	for i := 0; i < m.workers; i++ {
		owner := fmt.Sprintf("%s-%s-w%d", host, uuid.NewString()[:8], i)
		go m.runWorker(runCtx, owner)
	}
	go m.runReclaimMonitor(runCtx)

	m.logger.Info("pipeline started", logging.Int("workers", m.workers))
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("pipeline stopped")
}

// LastError returns the most recent error observed by a worker, for status
// surfaces. It does not reset.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status jobs.Status) (pipelineStage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}

func (m *Manager) claimableStatuses() []jobs.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jobs.Status, len(m.claimable))
	copy(out, m.claimable)
	return out
}

func secondsOr(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

func attemptsOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func workersOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

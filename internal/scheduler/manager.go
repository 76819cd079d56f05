package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCronSpec runs the sweep once a day at 02:00. The sweep is
// idempotent, so operators may schedule it hourly without side effects.
const DefaultCronSpec = "0 2 * * *"

// Manager drives the sweep on a cron schedule.
type Manager struct {
	cron    *cron.Cron
	sweeper *Sweeper
	logger  *zap.Logger
	spec    string
	timeout time.Duration
	mu      sync.Mutex
	running bool
}

// NewManager creates a sweep manager. An empty spec falls back to
// DefaultCronSpec.
func NewManager(sweeper *Sweeper, logger *zap.Logger, spec string) *Manager {
	if spec == "" {
		spec = DefaultCronSpec
	}
	return &Manager{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  logger,
		spec:    spec,
		timeout: 30 * time.Minute,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("sweep manager already running")
	}

	if _, err := m.cron.AddFunc(m.spec, m.runSweep); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	m.cron.Start()
	m.running = true
	m.logger.Info("sweep manager started", zap.String("cron", m.spec))
	return nil
}

// Stop stops the cron scheduler and waits for a running sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	ctx := m.cron.Stop()
	<-ctx.Done()
	m.running = false
	m.logger.Info("sweep manager stopped")
}

// RunNow triggers a sweep outside the schedule, for operators and tests.
func (m *Manager) RunNow(ctx context.Context) SweepReport {
	return m.sweeper.Sweep(ctx)
}

func (m *Manager) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	report := m.sweeper.Sweep(ctx)
	for _, err := range report.Errors {
		m.logger.Warn("sweep record failed", zap.Error(err))
	}
}

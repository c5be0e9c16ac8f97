package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"curator/internal/classifier"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/queue"
)

// State describes what the worker loop is currently doing.
type State string

const (
	StateRunning State = "running"
	StateIdle    State = "idle"
	StateStalled State = "stalled"
)

const errorRetryInterval = 5 * time.Second

// Manager owns the sequential queue worker.
type Manager struct {
	configs *config.Manager
	store   *queue.Store
	logger  *slog.Logger
	clock   Clock

	mu        sync.RWMutex
	gateway   classifier.Gateway
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJob   *queue.Job
	state     State
	lastStart time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the wall clock (used in tests).
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager constructs a workflow manager. The gateway may be swapped at
// runtime via SetGateway when configuration reloads change the classifier.
func NewManager(configs *config.Manager, store *queue.Store, gateway classifier.Gateway, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		configs: configs,
		store:   store,
		gateway: gateway,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		clock:   RealClock(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastStart = m.clock.Now()
	return m
}

// SetGateway replaces the classification gateway for subsequent units.
// An in-flight classification keeps the gateway it started with.
func (m *Manager) SetGateway(gateway classifier.Gateway) {
	if gateway == nil {
		return
	}
	m.mu.Lock()
	m.gateway = gateway
	m.mu.Unlock()
}

func (m *Manager) currentGateway() classifier.Gateway {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gateway
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.gateway == nil {
		m.mu.Unlock()
		return errors.New("workflow gateway not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the loop to exit.
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
}

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running    bool
	State      State
	LastError  string
	LastJob    *queue.Job
	QueueStats map[queue.Status]int
}

// Status returns the latest worker information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	state := m.state
	lastErr := m.lastErr
	lastJob := m.lastJob.Clone()
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{Running: running, State: state, LastJob: lastJob, QueueStats: stats}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	m.lastJob = job.Clone()
	m.mu.Unlock()
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) markStarted(now time.Time) {
	m.mu.Lock()
	m.state = StateRunning
	m.lastStart = now
	m.mu.Unlock()
}

func (m *Manager) lastProcessingStart() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastStart
}

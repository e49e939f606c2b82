package engine

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Manager tracks the engines of one process and stops them together.
//
// Once StopAll begins, every managed engine ignores new timers, includes,
// loads and evaluations, and Run refuses to start.
type Manager struct {
	logger   *slog.Logger
	stopping atomic.Bool

	mu      sync.Mutex
	engines []*Engine
}

// NewManager creates an empty manager. A nil logger selects slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Add puts e under the manager. Call before e runs.
func (m *Manager) Add(e *Engine) {
	e.stopping.Store(&m.stopping)
	m.mu.Lock()
	m.engines = append(m.engines, e)
	m.mu.Unlock()
}

// Engines returns the managed engines in the order they were added.
func (m *Manager) Engines() []*Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Engine(nil), m.engines...)
}

// IsStopping reports whether StopAll has begun.
func (m *Manager) IsStopping() bool {
	return m.stopping.Load()
}

// StopAll stops every managed engine, then waits for each with the bounded
// wait. Returns the joined shutdown timeout errors of engines that had to
// be aborted.
func (m *Manager) StopAll() error {
	m.stopping.Store(true)
	engines := m.Engines()

	m.logger.Info("stopping all scripts", "count", len(engines))
	for _, e := range engines {
		e.Stop()
	}

	var errs []error
	for _, e := range engines {
		if err := e.WaitTillDoneRunning(); err != nil {
			m.logger.Warn("script did not stop cleanly", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

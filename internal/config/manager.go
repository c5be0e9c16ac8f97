package config

import (
	"log/slog"
	"sync"
)

// Subscriber receives the previous and newly loaded configuration after a
// successful reload.
type Subscriber func(previous, current *Config)

// Manager owns the current configuration snapshot and supports hot reload.
// Consumers call Current for an immutable snapshot; nothing mutates a Config
// after it has been published.
type Manager struct {
	mu          sync.RWMutex
	path        string
	current     *Config
	subscribers []Subscriber
	logger      *slog.Logger
}

// NewManager wraps an already loaded configuration. path is re-read on Reload.
func NewManager(path string, initial *Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		path:    path,
		current: initial,
		logger:  logger,
	}
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Path returns the configuration file location backing this manager.
func (m *Manager) Path() string {
	return m.path
}

// Subscribe registers fn to run after every successful reload. Subscribers
// run synchronously on the reloading goroutine, in registration order.
func (m *Manager) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Reload re-reads the configuration file. On parse or validation failure the
// active snapshot is kept and the error returned; on success the snapshot is
// swapped and subscribers are notified with (previous, current).
func (m *Manager) Reload() (*Config, error) {
	loaded, _, _, err := Load(m.path)
	if err != nil {
		m.logger.Warn("config reload failed; keeping active configuration", "error", err)
		return nil, err
	}

	m.mu.Lock()
	previous := m.current
	m.current = loaded
	subscribers := make([]Subscriber, len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	m.logger.Info("configuration reloaded", "path", m.path)
	for _, fn := range subscribers {
		fn(previous, loaded)
	}
	return loaded, nil
}

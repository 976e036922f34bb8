package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager lazily launches a single Session and relaunches it after the
// browser disconnects.
type Manager struct {
	launcher Launcher

	mu      sync.Mutex
	session Session
	closed  bool
}

func NewManager(launcher Launcher) *Manager {
	return &Manager{launcher: launcher}
}

// Acquire returns the live session, launching one if needed. Launch errors
// are returned as-is to the caller; there is no inline retry.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.session != nil {
		return m.session, nil
	}

	slog.Info("Launching browser")
	s, err := m.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	m.session = s
	go m.watch(s)
	return s, nil
}

// watch drops a crashed session and releases whatever it still holds (driver
// process, allocator, profile dir). Sessions closed by Shutdown are skipped.
func (m *Manager) watch(s Session) {
	<-s.Disconnected()

	m.mu.Lock()
	crashed := m.session == s
	if crashed {
		m.session = nil
	}
	m.mu.Unlock()

	if !crashed {
		return
	}
	slog.Warn("Browser disconnected, will relaunch on next acquire")
	if err := s.Close(); err != nil {
		slog.Warn("Failed to release disconnected browser", "error", err)
	}
}

// Shutdown closes the live session, if any. Safe to call more than once.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.closed = true
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	slog.Info("Closing browser")
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"log/slog"
	"sync"

	"github.com/J-Delsinne/homeanywhere/lib/clock"
)

// Key identifies a session in the registry. One controller can expose
// several buses; each gets its own session and socket.
type Key struct {
	Controller string
	Bus        byte
}

// ManagerConfig supplies the ambient dependencies every session under
// a manager shares. All fields are optional.
type ManagerConfig struct {
	Logger   *slog.Logger
	Clock    clock.Clock
	Dialer   Dialer
	Recorder Recorder
}

// Manager owns the sessions of one deployment and deduplicates them by
// (controller, bus) so independent consumers share a single connection
// per controller. It is an instance passed explicitly to whoever needs
// it; there is no process-wide registry.
type Manager struct {
	cfg ManagerConfig

	mu       sync.Mutex
	sessions map[Key]*Session
}

// NewManager returns an empty registry.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[Key]*Session),
	}
}

// Session returns the existing session for cfg's (Name, Bus) key or
// creates one. The manager's ambient dependencies fill any the config
// leaves unset.
func (m *Manager) Session(cfg Config) *Session {
	key := Key{Controller: cfg.Name, Bus: cfg.Bus}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[key]; ok {
		return existing
	}

	if cfg.Logger == nil {
		cfg.Logger = m.cfg.Logger
	}
	if cfg.Clock == nil {
		cfg.Clock = m.cfg.Clock
	}
	if cfg.Dialer == nil {
		cfg.Dialer = m.cfg.Dialer
	}
	if cfg.Recorder == nil {
		cfg.Recorder = m.cfg.Recorder
	}

	s := NewSession(cfg)
	m.sessions[key] = s
	return s
}

// Get returns the session for key, if any.
func (m *Manager) Get(key Key) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Close permanently shuts down every session and empties the registry.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[Key]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

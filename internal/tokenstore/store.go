// Package tokenstore persists the upstream bearer token. Nothing else in the
// gateway touches token storage directly.
package tokenstore

import "sync"

// Store is the minimal persistence contract for a single bearer token.
type Store interface {
	// Token returns the persisted token, if any.
	Token() (string, bool)
	// Save replaces the persisted token.
	Save(token string) error
	// Clear removes the persisted token. Clearing an empty store is a no-op.
	Clear() error
}

// Memory holds the token in process memory. The gateway gives each browser
// session one of these, seeded from the session cookie; tests use it directly.
type Memory struct {
	mu    sync.Mutex
	token string
	set   bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Seeded returns an in-memory store preloaded with token.
func Seeded(token string) *Memory {
	m := &Memory{}
	if token != "" {
		m.token = token
		m.set = true
	}
	return m
}

func (m *Memory) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.set
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = token != ""
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}

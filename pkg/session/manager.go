package session

import (
	"context"
	"sync"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager hands out per-project locks, garbage-collecting entries via
// reference counting once no caller holds them.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*lockEntry)}
}

// acquire gets or creates a lock entry and increments its reference count.
func (m *Manager) acquire(projectID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[projectID]
	if !exists {
		entry = &lockEntry{}
		m.locks[projectID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[projectID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, projectID)
	}
}

// WithLock executes fn while holding the project's lock. Read-modify-write
// sequences against the store go through here so a learner's actions on one
// project are serialized.
func (m *Manager) WithLock(ctx context.Context, projectID string, fn func(context.Context) error) error {
	entry := m.acquire(projectID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(projectID)
	}()
	return fn(ctx)
}

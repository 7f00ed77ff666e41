package mocks

import (
	"context"
	"sync"
)

// MockContentIndex is a mock implementation of ContentIndex for testing.
// It keeps persisted and staged hashes in memory and supports custom
// behavior injection.
type MockContentIndex struct {
	mu        sync.Mutex
	persisted map[string]bool
	staged    map[string]bool

	committed  bool
	rolledBack bool

	// Custom behavior hooks (optional)
	ContainsFn func(hash string) (bool, error)
	InsertFn   func(hash string) error
	CommitFn   func() error
	RollbackFn func() error
	PingFn     func() error
}

// NewMockContentIndex creates a new mock content index.
func NewMockContentIndex() *MockContentIndex {
	return &MockContentIndex{
		persisted: make(map[string]bool),
		staged:    make(map[string]bool),
	}
}

// SeedPersisted marks hashes as already persisted by earlier runs.
func (m *MockContentIndex) SeedPersisted(hashes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		m.persisted[h] = true
	}
}

func (m *MockContentIndex) Contains(ctx context.Context, hash string) (bool, error) {
	if m.ContainsFn != nil {
		return m.ContainsFn(hash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persisted[hash] || m.staged[hash], nil
}

func (m *MockContentIndex) Insert(ctx context.Context, hash string) error {
	if m.InsertFn != nil {
		return m.InsertFn(hash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged[hash] = true
	return nil
}

func (m *MockContentIndex) Commit(ctx context.Context) error {
	if m.CommitFn != nil {
		return m.CommitFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for h := range m.staged {
		m.persisted[h] = true
	}
	m.staged = make(map[string]bool)
	m.committed = true
	return nil
}

func (m *MockContentIndex) Rollback(ctx context.Context) error {
	if m.RollbackFn != nil {
		return m.RollbackFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolledBack = true
	m.staged = make(map[string]bool)
	return nil
}

func (m *MockContentIndex) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.persisted), nil
}

func (m *MockContentIndex) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Committed reports whether Commit was called.
func (m *MockContentIndex) Committed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// RolledBack reports whether Rollback was called.
func (m *MockContentIndex) RolledBack() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rolledBack
}

// PersistedCount returns the number of persisted hashes.
func (m *MockContentIndex) PersistedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.persisted)
}

// StagedCount returns the number of staged, uncommitted hashes.
func (m *MockContentIndex) StagedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.staged)
}

// Reset clears all state.
func (m *MockContentIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted = make(map[string]bool)
	m.staged = make(map[string]bool)
	m.committed = false
	m.rolledBack = false
}

package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// MockArtifactStore is a mock implementation of ArtifactStore for testing.
// It captures written snapshots in memory and supports custom behavior injection.
type MockArtifactStore struct {
	mu        sync.Mutex
	snapshots []*domain.Snapshot

	// Custom behavior hooks (optional)
	WriteSnapshotFn func(snapshot *domain.Snapshot) error
}

// NewMockArtifactStore creates a new mock artifact store.
func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{}
}

// WriteSnapshot records the snapshot.
// If WriteSnapshotFn is set, it delegates to that function.
func (m *MockArtifactStore) WriteSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	if m.WriteSnapshotFn != nil {
		return m.WriteSnapshotFn(snapshot)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

// LastSnapshot returns the most recently written snapshot, or nil.
func (m *MockArtifactStore) LastSnapshot() *domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.snapshots) == 0 {
		return nil
	}
	return m.snapshots[len(m.snapshots)-1]
}

// WriteCalls returns how many snapshots were written.
func (m *MockArtifactStore) WriteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// Reset clears all captured snapshots (useful between tests).
func (m *MockArtifactStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = nil
}

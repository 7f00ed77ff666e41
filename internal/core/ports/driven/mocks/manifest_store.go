package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// MockManifestStore is a mock implementation of ManifestStore for testing
type MockManifestStore struct {
	mu        sync.RWMutex
	manifests map[string]*domain.DatasetManifest
	audit     map[string][]domain.AuditEntry
	saveCalls int

	// Custom behavior hooks (optional)
	SaveFn func(manifest *domain.DatasetManifest, audit []domain.AuditEntry) error
	PingFn func() error
}

// NewMockManifestStore creates a new MockManifestStore
func NewMockManifestStore() *MockManifestStore {
	return &MockManifestStore{
		manifests: make(map[string]*domain.DatasetManifest),
		audit:     make(map[string][]domain.AuditEntry),
	}
}

func (m *MockManifestStore) Save(ctx context.Context, manifest *domain.DatasetManifest, audit []domain.AuditEntry) error {
	if m.SaveFn != nil {
		return m.SaveFn(manifest, audit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if _, ok := m.manifests[manifest.VersionID]; ok {
		return nil
	}
	m.manifests[manifest.VersionID] = manifest
	m.audit[manifest.VersionID] = audit
	return nil
}

func (m *MockManifestStore) Get(ctx context.Context, versionID string) (*domain.DatasetManifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	manifest, ok := m.manifests[versionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return manifest, nil
}

func (m *MockManifestStore) Latest(ctx context.Context) (*domain.DatasetManifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.DatasetManifest
	for _, manifest := range m.manifests {
		if latest == nil || manifest.CreatedAt.After(latest.CreatedAt) {
			latest = manifest
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (m *MockManifestStore) ListVersions(ctx context.Context, limit int) ([]domain.VersionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summaries := make([]domain.VersionSummary, 0, len(m.manifests))
	for _, manifest := range m.manifests {
		summaries = append(summaries, domain.VersionSummary{
			VersionID:   manifest.VersionID,
			CreatedAt:   manifest.CreatedAt,
			RecordCount: manifest.RecordCount,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (m *MockManifestStore) AuditEntries(ctx context.Context, versionID string) ([]domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.manifests[versionID]; !ok {
		return nil, domain.ErrNotFound
	}
	return m.audit[versionID], nil
}

func (m *MockManifestStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// SaveCalls returns how many times Save was invoked.
func (m *MockManifestStore) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCalls
}

// Reset clears all state.
func (m *MockManifestStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests = make(map[string]*domain.DatasetManifest)
	m.audit = make(map[string][]domain.AuditEntry)
	m.saveCalls = 0
}

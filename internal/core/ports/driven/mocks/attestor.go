package mocks

import (
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// MockManifestAttestor is a mock implementation of ManifestAttestor for testing.
// It issues fake tokens keyed by version ID and supports custom behavior injection.
type MockManifestAttestor struct {
	mu     sync.Mutex
	issued map[string]*domain.Attestation

	// Custom behavior hooks (optional)
	AttestFn func(manifest *domain.DatasetManifest) (string, error)
	VerifyFn func(token string) (*domain.Attestation, error)
}

// NewMockManifestAttestor creates a new mock attestor.
func NewMockManifestAttestor() *MockManifestAttestor {
	return &MockManifestAttestor{
		issued: make(map[string]*domain.Attestation),
	}
}

// Attest issues a fake token of the form "attest:<version_id>".
// If AttestFn is set, it delegates to that function.
func (m *MockManifestAttestor) Attest(manifest *domain.DatasetManifest) (string, error) {
	if m.AttestFn != nil {
		return m.AttestFn(manifest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	token := "attest:" + manifest.VersionID
	m.issued[token] = &domain.Attestation{
		VersionID:   manifest.VersionID,
		RecordCount: manifest.RecordCount,
		CreatedAt:   manifest.CreatedAt,
		IssuedAt:    time.Now().UTC(),
	}
	return token, nil
}

// Verify resolves a token previously issued by Attest.
// If VerifyFn is set, it delegates to that function.
func (m *MockManifestAttestor) Verify(token string) (*domain.Attestation, error) {
	if m.VerifyFn != nil {
		return m.VerifyFn(token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	attestation, exists := m.issued[token]
	if !exists {
		return nil, fmt.Errorf("unknown attestation token: %w", domain.ErrNotFound)
	}
	return attestation, nil
}

// IssuedCount returns how many tokens were issued.
func (m *MockManifestAttestor) IssuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.issued)
}

// Reset clears all issued tokens (useful between tests).
func (m *MockManifestAttestor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued = make(map[string]*domain.Attestation)
}

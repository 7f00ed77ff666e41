package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driving"
)

// Ensure historyService implements HistoryService
var _ driving.HistoryService = (*historyService)(nil)

// historyService implements the HistoryService interface
type historyService struct {
	manifests driven.ManifestStore
	attestor  driven.ManifestAttestor
}

// NewHistoryService creates a new HistoryService. The attestor is
// optional; without one, VerifyAttestation reports a configuration error.
func NewHistoryService(
	manifests driven.ManifestStore,
	attestor driven.ManifestAttestor,
) driving.HistoryService {
	return &historyService{
		manifests: manifests,
		attestor:  attestor,
	}
}

// Latest retrieves the most recently published manifest
func (s *historyService) Latest(ctx context.Context) (*domain.DatasetManifest, error) {
	return s.manifests.Latest(ctx)
}

// Get retrieves a manifest by version ID
func (s *historyService) Get(ctx context.Context, versionID string) (*domain.DatasetManifest, error) {
	return s.manifests.Get(ctx, versionID)
}

// List returns version summaries, newest first
func (s *historyService) List(ctx context.Context, limit int) ([]domain.VersionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}
	return s.manifests.ListVersions(ctx, limit)
}

// Audit returns the audit log published with a version
func (s *historyService) Audit(ctx context.Context, versionID string) ([]domain.AuditEntry, error) {
	return s.manifests.AuditEntries(ctx, versionID)
}

// Diff reports the records added and removed between two versions.
// Comparison is by content hash, so a record that was re-ingested under
// a new ID with identical content does not show up as a change.
func (s *historyService) Diff(ctx context.Context, fromVersion, toVersion string) (*domain.VersionDiff, error) {
	from, err := s.manifests.Get(ctx, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load version %s: %w", fromVersion, err)
	}
	to, err := s.manifests.Get(ctx, toVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load version %s: %w", toVersion, err)
	}

	fromHashes := make(map[string]bool, len(from.Records))
	for _, rec := range from.Records {
		fromHashes[rec.ContentHash] = true
	}
	toHashes := make(map[string]bool, len(to.Records))
	for _, rec := range to.Records {
		toHashes[rec.ContentHash] = true
	}

	diff := &domain.VersionDiff{
		From: fromVersion,
		To:   toVersion,
	}
	// Manifest records are sorted by record ID, so the diff inherits a
	// stable order
	for _, rec := range to.Records {
		if !fromHashes[rec.ContentHash] {
			diff.Added = append(diff.Added, rec)
		}
	}
	for _, rec := range from.Records {
		if !toHashes[rec.ContentHash] {
			diff.Removed = append(diff.Removed, rec)
		}
	}

	return diff, nil
}

// VerifyAttestation checks a signed manifest token and returns its claims
func (s *historyService) VerifyAttestation(token string) (*domain.Attestation, error) {
	if s.attestor == nil {
		return nil, fmt.Errorf("%w: no attestation secret configured", domain.ErrConfiguration)
	}
	return s.attestor.Verify(token)
}

package driven

import (
	"context"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// ManifestStore persists dataset versions and their audit trail
// (PostgreSQL)
type ManifestStore interface {
	// Save publishes a manifest and its audit entries in one transaction.
	// Saving an already published version again is a no-op, so a run
	// interrupted after publish heals on retry.
	Save(ctx context.Context, manifest *domain.DatasetManifest, audit []domain.AuditEntry) error

	// Get retrieves a manifest by version ID
	Get(ctx context.Context, versionID string) (*domain.DatasetManifest, error)

	// Latest retrieves the most recently published manifest
	Latest(ctx context.Context) (*domain.DatasetManifest, error)

	// ListVersions returns version summaries, newest first
	ListVersions(ctx context.Context, limit int) ([]domain.VersionSummary, error)

	// AuditEntries returns the audit log published with a version
	AuditEntries(ctx context.Context, versionID string) ([]domain.AuditEntry, error)

	// Ping checks if the store backend is healthy
	Ping(ctx context.Context) error
}

package driving

import (
	"context"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// HistoryService provides read-only access to published dataset versions
type HistoryService interface {
	// Latest retrieves the most recently published manifest
	Latest(ctx context.Context) (*domain.DatasetManifest, error)

	// Get retrieves a manifest by version ID
	Get(ctx context.Context, versionID string) (*domain.DatasetManifest, error)

	// List returns version summaries, newest first
	List(ctx context.Context, limit int) ([]domain.VersionSummary, error)

	// Audit returns the audit log published with a version
	Audit(ctx context.Context, versionID string) ([]domain.AuditEntry, error)

	// Diff reports the records added and removed between two versions,
	// compared by content hash
	Diff(ctx context.Context, fromVersion, toVersion string) (*domain.VersionDiff, error)

	// VerifyAttestation checks a signed manifest token and returns its
	// claims
	VerifyAttestation(token string) (*domain.Attestation, error)
}

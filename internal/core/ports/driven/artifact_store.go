package driven

import (
	"context"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// ArtifactStore writes published snapshot files for downstream eval
// runners (S3/MinIO or local filesystem)
type ArtifactStore interface {
	// WriteSnapshot writes manifest.json, records.jsonl, and audit.jsonl
	// under the version's prefix. Content under a version is immutable;
	// rewriting the same version happens only when a retried run
	// republishes identical content.
	WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error
}

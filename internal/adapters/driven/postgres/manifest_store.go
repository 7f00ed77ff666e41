package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ManifestStore = (*ManifestStore)(nil)

// ManifestStore implements manifest persistence using PostgreSQL.
type ManifestStore struct {
	db *DB
}

// NewManifestStore creates a new PostgreSQL manifest store.
func NewManifestStore(db *DB) *ManifestStore {
	return &ManifestStore{db: db}
}

// Save publishes a manifest and its audit entries in one transaction.
// A version that is already published is left untouched, so a run
// interrupted between publish and index commit heals on retry.
func (s *ManifestStore) Save(ctx context.Context, manifest *domain.DatasetManifest, audit []domain.AuditEntry) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO dataset_versions (version_id, created_at, record_count)
			VALUES ($1, $2, $3)
			ON CONFLICT (version_id) DO NOTHING
		`, manifest.VersionID, manifest.CreatedAt, manifest.RecordCount)
		if err != nil {
			return fmt.Errorf("failed to insert dataset version: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check version insert: %w", err)
		}
		if inserted == 0 {
			// Version already published. Records and audit entries were
			// written with it in the same transaction, so nothing to do.
			return nil
		}

		recStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO manifest_records (version_id, position, record_id, content_hash, source_id)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare record insert: %w", err)
		}
		defer recStmt.Close()

		for pos, r := range manifest.Records {
			if _, err := recStmt.ExecContext(ctx, manifest.VersionID, pos, r.RecordID, r.ContentHash, r.SourceID); err != nil {
				return fmt.Errorf("failed to insert manifest record %s: %w", r.RecordID, err)
			}
		}

		auditStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO audit_entries (version_id, record_id, source_id, reason, duplicate_of, detail, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare audit insert: %w", err)
		}
		defer auditStmt.Close()

		for _, e := range audit {
			if _, err := auditStmt.ExecContext(ctx, manifest.VersionID, e.RecordID, e.SourceID, string(e.Reason), e.DuplicateOf, e.Detail, e.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert audit entry for %s: %w", e.RecordID, err)
			}
		}

		return nil
	})
}

// Get retrieves a manifest by version ID.
func (s *ManifestStore) Get(ctx context.Context, versionID string) (*domain.DatasetManifest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version_id, created_at, record_count
		FROM dataset_versions
		WHERE version_id = $1
	`, versionID)

	manifest, err := scanManifest(row)
	if err != nil {
		return nil, err
	}

	records, err := s.loadRecords(ctx, manifest.VersionID)
	if err != nil {
		return nil, err
	}
	manifest.Records = records
	return manifest, nil
}

// Latest retrieves the most recently published manifest.
func (s *ManifestStore) Latest(ctx context.Context) (*domain.DatasetManifest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version_id, created_at, record_count
		FROM dataset_versions
		ORDER BY created_at DESC, version_id DESC
		LIMIT 1
	`)

	manifest, err := scanManifest(row)
	if err != nil {
		return nil, err
	}

	records, err := s.loadRecords(ctx, manifest.VersionID)
	if err != nil {
		return nil, err
	}
	manifest.Records = records
	return manifest, nil
}

// ListVersions returns version summaries, newest first.
func (s *ManifestStore) ListVersions(ctx context.Context, limit int) ([]domain.VersionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, created_at, record_count
		FROM dataset_versions
		ORDER BY created_at DESC, version_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var summaries []domain.VersionSummary
	for rows.Next() {
		var v domain.VersionSummary
		if err := rows.Scan(&v.VersionID, &v.CreatedAt, &v.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan version summary: %w", err)
		}
		summaries = append(summaries, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", err)
	}
	return summaries, nil
}

// AuditEntries returns the audit log published with a version, in
// pipeline order.
func (s *ManifestStore) AuditEntries(ctx context.Context, versionID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, source_id, reason, duplicate_of, detail, created_at
		FROM audit_entries
		WHERE version_id = $1
		ORDER BY id
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var reason string
		if err := rows.Scan(&e.RecordID, &e.SourceID, &reason, &e.DuplicateOf, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Reason = domain.ExclusionReason(reason)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (s *ManifestStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// loadRecords fetches a version's surviving records in manifest order.
func (s *ManifestStore) loadRecords(ctx context.Context, versionID string) ([]domain.ManifestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, content_hash, source_id
		FROM manifest_records
		WHERE version_id = $1
		ORDER BY position
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest records: %w", err)
	}
	defer rows.Close()

	var records []domain.ManifestRecord
	for rows.Next() {
		var r domain.ManifestRecord
		if err := rows.Scan(&r.RecordID, &r.ContentHash, &r.SourceID); err != nil {
			return nil, fmt.Errorf("failed to scan manifest record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manifest records: %w", err)
	}
	return records, nil
}

// scanManifest scans a single dataset version row without its records.
func scanManifest(row *sql.Row) (*domain.DatasetManifest, error) {
	var m domain.DatasetManifest
	err := row.Scan(&m.VersionID, &m.CreatedAt, &m.RecordCount)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset version: %w", err)
	}
	return &m, nil
}

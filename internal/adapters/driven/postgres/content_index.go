package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentIndex = (*ContentIndex)(nil)

// ContentIndex implements the cross-batch exact-match index on the
// content_hashes table. Staged inserts go through a transaction that is
// opened on first use and held until Commit or Rollback, so hashes from
// an aborted run never become visible to later runs. The run lock keeps
// writers serialized, so a single staging transaction per process is
// enough.
type ContentIndex struct {
	db *DB

	mu sync.Mutex
	tx *sql.Tx
}

// NewContentIndex creates a PostgreSQL-backed content index.
func NewContentIndex(db *DB) *ContentIndex {
	return &ContentIndex{db: db}
}

// stagingTx returns the current staging transaction, opening one if needed.
// Callers must hold i.mu.
func (i *ContentIndex) stagingTx(ctx context.Context) (*sql.Tx, error) {
	if i.tx != nil {
		return i.tx, nil
	}
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	i.tx = tx
	return tx, nil
}

// Contains reports whether a hash is persisted or staged by this run.
// Queries run inside the staging transaction so the run sees its own
// uncommitted inserts.
func (i *ContentIndex) Contains(ctx context.Context, hash string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.stagingTx(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM content_hashes WHERE hash = $1)", hash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query content hash: %w", err)
	}
	return exists, nil
}

// Insert stages a content hash. Staging an already known hash is a no-op.
func (i *ContentIndex) Insert(ctx context.Context, hash string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.stagingTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO content_hashes (hash) VALUES ($1) ON CONFLICT (hash) DO NOTHING", hash,
	)
	if err != nil {
		return fmt.Errorf("failed to stage content hash: %w", err)
	}
	return nil
}

// Commit makes this run's staged hashes visible to other runs.
// With nothing staged it is a no-op.
func (i *ContentIndex) Commit(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.tx == nil {
		return nil
	}
	err := i.tx.Commit()
	i.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit staged hashes: %w", err)
	}
	return nil
}

// Rollback discards this run's staged hashes.
// Safe to call after Commit or with nothing staged.
func (i *ContentIndex) Rollback(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.tx == nil {
		return nil
	}
	err := i.tx.Rollback()
	i.tx = nil
	if err != nil {
		return fmt.Errorf("failed to roll back staged hashes: %w", err)
	}
	return nil
}

// Count returns the number of persisted hashes. Staged hashes from the
// current run are not counted.
func (i *ContentIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_hashes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count content hashes: %w", err)
	}
	return count, nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (i *ContentIndex) Ping(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

package driven

import "context"

// ContentIndex is the persisted cross-batch exact-match index (PostgreSQL
// or Redis). Inserts stage into the current run and become visible to
// other runs only after Commit; an aborted run rolls back and leaves the
// index untouched. At most one writer runs at a time, enforced by the
// run lock.
type ContentIndex interface {
	// Contains reports whether a content hash is already persisted or
	// staged by this run.
	Contains(ctx context.Context, hash string) (bool, error)

	// Insert stages a content hash for this run. Staging a hash that is
	// already present is a no-op.
	Insert(ctx context.Context, hash string) error

	// Commit makes this run's staged hashes visible to other runs.
	Commit(ctx context.Context) error

	// Rollback discards this run's staged hashes.
	// Safe to call after Commit or with nothing staged.
	Rollback(ctx context.Context) error

	// Count returns the number of persisted hashes.
	Count(ctx context.Context) (int, error)

	// Ping checks if the index backend is healthy.
	Ping(ctx context.Context) error
}

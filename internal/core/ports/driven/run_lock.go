package driven

import (
	"context"
	"time"
)

// RunLock serializes dedup runs so the content index has at most one
// writer. Backed by Redis SET NX locks, or PostgreSQL advisory locks as
// a fallback when Redis is not configured.
type RunLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if the lock was acquired, false if another run holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock, keeping long
	// batches covered. Implementations without TTL may treat this as a
	// no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}

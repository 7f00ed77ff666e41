package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.ContentIndex = (*ContentIndex)(nil)

const (
	indexKey = "corpora:content-index"

	// stagedTTL bounds how long an orphaned staging set can linger after
	// a crashed run. Refreshed on every insert.
	stagedTTL = time.Hour
)

// ContentIndex implements the cross-batch exact-match index on Redis
// sets. Persisted hashes live in one set; each run stages its inserts
// into a private set named after a per-instance nonce, so hashes from
// an aborted run never become visible to later runs. Commit folds the
// staged set into the persisted one atomically.
type ContentIndex struct {
	client    *redis.Client
	stagedKey string
}

// NewContentIndex creates a Redis-backed content index.
func NewContentIndex(client *redis.Client) *ContentIndex {
	nonce := make([]byte, 8)
	_, _ = rand.Read(nonce)
	return &ContentIndex{
		client:    client,
		stagedKey: fmt.Sprintf("%s:staged:%s", indexKey, hex.EncodeToString(nonce)),
	}
}

// Contains reports whether a hash is persisted or staged by this run.
func (i *ContentIndex) Contains(ctx context.Context, hash string) (bool, error) {
	persisted, err := i.client.SIsMember(ctx, indexKey, hash).Result()
	if err != nil {
		return false, fmt.Errorf("check content index: %w", err)
	}
	if persisted {
		return true, nil
	}

	staged, err := i.client.SIsMember(ctx, i.stagedKey, hash).Result()
	if err != nil {
		return false, fmt.Errorf("check staged hashes: %w", err)
	}
	return staged, nil
}

// Insert stages a content hash for this run and refreshes the staging
// set's TTL. Staging an already known hash is a no-op.
func (i *ContentIndex) Insert(ctx context.Context, hash string) error {
	pipe := i.client.TxPipeline()
	pipe.SAdd(ctx, i.stagedKey, hash)
	pipe.Expire(ctx, i.stagedKey, stagedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stage content hash: %w", err)
	}
	return nil
}

// commitScript folds the staged set into the persisted set and removes
// it, in one atomic step.
var commitScript = redis.NewScript(`
	if redis.call("exists", KEYS[2]) == 1 then
		redis.call("sunionstore", KEYS[1], KEYS[1], KEYS[2])
		redis.call("del", KEYS[2])
	end
	return redis.call("scard", KEYS[1])
`)

// Commit makes this run's staged hashes visible to other runs.
// With nothing staged it is a no-op.
func (i *ContentIndex) Commit(ctx context.Context) error {
	_, err := commitScript.Run(ctx, i.client, []string{indexKey, i.stagedKey}).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("commit staged hashes: %w", err)
	}
	return nil
}

// Rollback discards this run's staged hashes.
// Safe to call after Commit or with nothing staged.
func (i *ContentIndex) Rollback(ctx context.Context) error {
	if err := i.client.Del(ctx, i.stagedKey).Err(); err != nil {
		return fmt.Errorf("discard staged hashes: %w", err)
	}
	return nil
}

// Count returns the number of persisted hashes. Staged hashes from the
// current run are not counted.
func (i *ContentIndex) Count(ctx context.Context) (int, error) {
	count, err := i.client.SCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count content index: %w", err)
	}
	return int(count), nil
}

// Ping checks if the Redis backend is healthy.
func (i *ContentIndex) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

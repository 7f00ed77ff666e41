package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestForEachRunsAll(t *testing.T) {
	p := NewPool(4)

	var mu sync.Mutex
	seen := make(map[int]bool)

	err := p.ForEach(context.Background(), 100, func(ctx context.Context, i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 100 {
		t.Errorf("expected 100 items processed, got %d", len(seen))
	}
}

func TestForEachRespectsBound(t *testing.T) {
	p := NewPool(3)

	var current, peak int64
	err := p.ForEach(context.Background(), 50, func(ctx context.Context, i int) error {
		n := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		atomic.AddInt64(&current, -1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt64(&peak); got > 3 {
		t.Errorf("concurrency bound exceeded: peak %d", got)
	}
}

func TestForEachPropagatesError(t *testing.T) {
	p := NewPool(2)
	boom := errors.New("boom")

	err := p.ForEach(context.Background(), 20, func(ctx context.Context, i int) error {
		if i == 5 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestForEachCancelledContext(t *testing.T) {
	p := NewPool(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int64
	_ = p.ForEach(ctx, 1000, func(ctx context.Context, i int) error {
		atomic.AddInt64(&ran, 1)
		return ctx.Err()
	})
	if got := atomic.LoadInt64(&ran); got > 10 {
		t.Errorf("cancelled context should stop scheduling early, ran %d", got)
	}
}

func TestNewPoolDefaults(t *testing.T) {
	if NewPool(0).Workers() < 1 {
		t.Error("zero workers should default to at least one")
	}
	if NewPool(-3).Workers() < 1 {
		t.Error("negative workers should default to at least one")
	}
	if got := NewPool(7).Workers(); got != 7 {
		t.Errorf("explicit workers should stick, got %d", got)
	}
}

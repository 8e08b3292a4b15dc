// Package runguard provides single-flight admission for scoring runs.
package runguard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Guard admits at most one holder per key.
type Guard interface {
	// TryAcquire records key as held. It fails with ErrRunInProgress when
	// another holder already has it.
	TryAcquire(ctx context.Context, key string) error

	// Release frees key so the next run can be admitted. Releasing a key
	// that is not held is a no-op.
	Release(ctx context.Context, key string)

	// Active returns the number of keys currently held.
	Active() int64
}

type lease struct {
	acquiredAt time.Time
}

// inMemoryGuard keeps held keys in a map. With a stale timeout, a lease
// older than staleAfter may be taken over by the next caller.
type inMemoryGuard struct {
	mu         sync.Mutex
	held       map[string]lease
	staleAfter time.Duration
	now        func() time.Time
	active     atomic.Int64
}

// New creates an in-process guard.
func New(opts ...Option) Guard {
	g := &inMemoryGuard{
		held: make(map[string]lease),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *inMemoryGuard) TryAcquire(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if l, exists := g.held[key]; exists {
		if g.staleAfter <= 0 || now.Sub(l.acquiredAt) < g.staleAfter {
			return ErrRunInProgress
		}
		// abandoned lease: take it over without bumping the count
		g.held[key] = lease{acquiredAt: now}
		return nil
	}

	g.held[key] = lease{acquiredAt: now}
	g.active.Add(1)
	return nil
}

func (g *inMemoryGuard) Release(ctx context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[key]; exists {
		delete(g.held, key)
		g.active.Add(-1)
	}
}

func (g *inMemoryGuard) Active() int64 {
	return g.active.Load()
}

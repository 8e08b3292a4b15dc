package runguard

import "time"

// Option applies a configuration option to the guard.
type Option func(*inMemoryGuard)

// WithStaleAfter lets a lease held longer than d be taken over.
// Zero or negative keeps leases until released.
func WithStaleAfter(d time.Duration) Option {
	return func(g *inMemoryGuard) {
		g.staleAfter = d
	}
}

// WithClock sets the time source used for lease ages.
func WithClock(now func() time.Time) Option {
	return func(g *inMemoryGuard) {
		if now != nil {
			g.now = now
		}
	}
}

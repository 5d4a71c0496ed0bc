package ratelimit

import "time"

// Option applies a configuration option to the Governor.
type Option func(*Governor)

// WithClock injects a clock, letting tests drive window expiry without
// wall-clock coupling.
func WithClock(c Clock) Option {
	return func(g *Governor) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithEntryStore swaps the backing entry store.
func WithEntryStore(s EntryStore) Option {
	return func(g *Governor) {
		if s != nil {
			g.store = s
		}
	}
}

// WithRetention sets how long idle entries survive before the sweeper
// purges them.
func WithRetention(d time.Duration) Option {
	return func(g *Governor) {
		if d > 0 {
			g.retention = d
		}
	}
}

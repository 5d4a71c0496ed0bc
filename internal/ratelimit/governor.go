// Package ratelimit implements the keyed fixed-window rate governor
// shared by outbound source/provider calls and the inbound proxy guard.
//
// The window is fixed, not sliding: once it elapses the counter resets
// wholesale on the next call instead of draining gradually. That trades
// burst tolerance for simplicity and is intentional; see the dedicated
// tests pinning the boundary behavior.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/corralhq/corral/pkg/metrics"
)

// Default housekeeping configuration.
const (
	defaultRetention     = time.Hour
	defaultSweepInterval = 10 * time.Minute
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // positive only when denied
}

// Clock abstracts wall time so window expiry is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Governor admits or rejects operations against per-key quotas. Safe
// for concurrent use: each admitted request increments its counter
// exactly once.
type Governor struct {
	mu        sync.Mutex
	store     EntryStore
	clock     Clock
	retention time.Duration
}

// New creates a Governor with an in-memory entry store and the system
// clock unless options say otherwise.
func New(opts ...Option) *Governor {
	g := &Governor{
		store:     NewMemoryEntryStore(),
		clock:     systemClock{},
		retention: defaultRetention,
	}

	// Apply all options
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check admits or denies one operation for key under the given quota.
//
// The first observation of a key opens a window starting now. Calls
// within the window increment the counter and are allowed until
// maxAttempts is reached; further calls are denied with a RetryAfter.
// Once the window has elapsed, the next call resets it atomically.
func (g *Governor) Check(key string, maxAttempts int, window time.Duration) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	entry, ok := g.store.Get(key)
	if !ok || now.Sub(entry.WindowStart) >= window {
		// New key, or the previous window elapsed: reset wholesale.
		entry = Entry{
			Key:         key,
			Attempts:    1,
			WindowStart: now,
			LastAttempt: now,
		}
		g.store.Put(entry)
		return Decision{
			Allowed:   true,
			Remaining: maxAttempts - 1,
			ResetAt:   now.Add(window),
		}
	}

	resetAt := entry.WindowStart.Add(window)
	if entry.Attempts >= maxAttempts {
		entry.LastAttempt = now
		g.store.Put(entry)
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	entry.Attempts++
	entry.LastAttempt = now
	g.store.Put(entry)
	return Decision{
		Allowed:   true,
		Remaining: maxAttempts - entry.Attempts,
		ResetAt:   resetAt,
	}
}

// Sweep purges entries idle beyond the retention horizon and returns
// how many were removed. Active windows are never touched.
func (g *Governor) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	var stale []string
	g.store.Range(func(e Entry) bool {
		if now.Sub(e.LastAttempt) >= g.retention {
			stale = append(stale, e.Key)
		}
		return true
	})
	for _, key := range stale {
		g.store.Delete(key)
	}

	metrics.UpdateGovernorEntries(g.store.Len())
	return len(stale)
}

// StartSweeper runs Sweep on the given interval until ctx is canceled.
func (g *Governor) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Sweep()
			}
		}
	}()
}

// Len returns the number of tracked windows.
func (g *Governor) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Len()
}

// Profile is a named {maxAttempts, window} quota for a resource class.
type Profile struct {
	Name        string
	MaxAttempts int
	Window      time.Duration
}

// CheckProfile runs Check under a profile's quota and records the
// outcome against the profile name.
func (g *Governor) CheckProfile(key string, p Profile) Decision {
	d := g.Check(key+":"+p.Name, p.MaxAttempts, p.Window)
	if d.Allowed {
		metrics.RecordGovernorAllowed(p.Name)
	} else {
		metrics.RecordGovernorDenied(p.Name)
	}
	return d
}

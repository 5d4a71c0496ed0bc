package scheduler

import (
	"time"

	"github.com/corralhq/corral/internal/adapters/provider"
	"github.com/corralhq/corral/internal/ratelimit"
)

// Option configures the scheduler.
type Option func(*Scheduler)

// WithTier sets the pacing tier. Worker count and dispatch rate are
// derived from it.
func WithTier(t provider.Tier) Option {
	return func(s *Scheduler) {
		s.tier = t
	}
}

// WithQueueSize bounds the pending queue.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithMaxAttempts caps retries per job.
func WithMaxAttempts(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay. Each retry doubles it.
func WithBackoffBase(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoffBase = d
		}
	}
}

// WithGovernor makes workers consult a rate governor before each
// dispatch, under the given profile.
func WithGovernor(g *ratelimit.Governor, p ratelimit.Profile) Option {
	return func(s *Scheduler) {
		s.governor = g
		s.governorProfile = p
	}
}

// WithProgress registers a callback invoked on every job status change.
// The callback receives a snapshot; it must not block for long.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) {
		s.progress = fn
	}
}

package service

import (
	"github.com/corralhq/corral/internal/adapters/repository"
	"github.com/corralhq/corral/internal/adapters/source"
	"github.com/corralhq/corral/internal/ratelimit"
	"github.com/corralhq/corral/internal/scheduler"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore replaces the model store. Tests use the in-memory one;
// without this option the service picks file or memory from config.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithSourceRegistry replaces the catalog source registry.
func WithSourceRegistry(reg *source.Registry) Option {
	return func(s *Service) {
		s.sources = reg
	}
}

// WithEnricher replaces the enrichment chain behind validation jobs.
func WithEnricher(e scheduler.Enricher) Option {
	return func(s *Service) {
		s.enricher = e
	}
}

// WithGovernor replaces the rate governor.
func WithGovernor(g *ratelimit.Governor) Option {
	return func(s *Service) {
		s.governor = g
	}
}

// WithSyncProgress registers a callback for sync checkpoints.
func WithSyncProgress(fn ProgressFunc) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

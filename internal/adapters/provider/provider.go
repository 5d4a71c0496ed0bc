// Package provider enriches catalog models with data the ingest pass
// could not supply: descriptions, parameter counts, licensing and
// pricing details. Each enrichment strategy is a Provider; a Chain
// tries strategies in the order a job asks for them.
//
// Providers return a partial model holding only the fields they
// learned. Folding those fields into the canonical record is the merge
// engine's job, never the provider's.
package provider

import (
	"context"
	"errors"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/logger"
)

// Provider enriches a model through one strategy.
type Provider interface {
	// Source returns the strategy this provider implements.
	Source() model.ValidationSource

	// Enrich returns a partial model with the fields it learned.
	// Failures carry a Category via *Error.
	Enrich(ctx context.Context, m model.Model) (model.Model, error)
}

// Config carries the provider credentials and endpoints from the
// application configuration.
type Config struct {
	Name     string
	Endpoint string
	APIKey   string
	Model    string
}

// Chain tries providers in the order a job's sources list them.
type Chain struct {
	providers map[model.ValidationSource]Provider
	logger    logger.Logger
}

// NewChain builds a chain over the given providers.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{
		providers: make(map[model.ValidationSource]Provider, len(providers)),
		logger:    logger.Get().Named("provider"),
	}
	for _, p := range providers {
		c.providers[p.Source()] = p
	}
	return c
}

// DefaultChain wires the built-in strategies from cfg.
func DefaultChain(cfg Config) *Chain {
	return NewChain(
		NewOpenAI(cfg),
		NewWebSearch(cfg),
		NewScraper(),
	)
}

// Enrich runs the first strategy in sources that succeeds. Disabled
// strategies are skipped; if every strategy is disabled the result is
// ErrNoProviderEnabled, which callers must not retry.
func (c *Chain) Enrich(ctx context.Context, m model.Model, sources []model.ValidationSource) (model.Model, model.ValidationSource, error) {
	if len(sources) == 0 {
		sources = []model.ValidationSource{model.SourceAPI, model.SourceWebsearch, model.SourceScraping}
	}

	var lastErr error
	allDisabled := true

	for _, src := range sources {
		p, ok := c.providers[src]
		if !ok {
			continue
		}

		partial, err := p.Enrich(ctx, m)
		if err == nil {
			return partial, src, nil
		}

		var pe *Error
		if !errors.As(err, &pe) || pe.Category != CategoryDisabled {
			allDisabled = false
			lastErr = err
		}
		c.logger.Debug(ctx, "enrichment strategy failed",
			logger.String("source", string(src)),
			logger.String("model", m.Name),
			logger.Error(err),
		)
	}

	if lastErr == nil || allDisabled {
		return model.Model{}, "", ErrNoProviderEnabled
	}
	return model.Model{}, "", lastErr
}

// Package source fetches raw model records from upstream catalogs.
//
// Adapters return records as loosely-typed maps; shaping them into the
// canonical schema is the normalizer's job, so a new upstream only
// needs a fetcher here plus mapping rules there.
package source

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default fetch configuration constants.
const (
	defaultPageSize    = 100
	defaultMaxPages    = 5
	defaultHTTPTimeout = 30 * time.Second
	defaultRetryCount  = 2
)

// FetchConfig bounds a single catalog pass.
type FetchConfig struct {
	PageSize int
	MaxPages int
}

func (c FetchConfig) withDefaults() FetchConfig {
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	return c
}

// Adapter fetches raw records from one upstream catalog.
type Adapter interface {
	// Name returns the source identifier used in canonical records.
	Name() string

	// Fetch retrieves up to MaxPages pages of raw records.
	Fetch(ctx context.Context, cfg FetchConfig) ([]map[string]any, error)
}

// newHTTPClient builds the resty client adapters share settings for.
func newHTTPClient() *resty.Client {
	return resty.New().
		SetHeader("User-Agent", "corral-catalog/1.0").
		SetTimeout(defaultHTTPTimeout).
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(500 * time.Millisecond)
}

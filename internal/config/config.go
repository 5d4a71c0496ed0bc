// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorePath is the JSON catalog file. Empty selects the in-memory store.
	StorePath string `koanf:"store_path"`

	// Sources lists the catalogs consulted during a sync pass.
	Sources []string `koanf:"sources"`

	// SourcePageSize bounds how many records a source adapter requests per page.
	SourcePageSize int `koanf:"source_page_size"`

	// SourceMaxPages bounds how many pages a source adapter walks per sync.
	SourceMaxPages int `koanf:"source_max_pages"`

	// SourceMaxAttempts and SourceWindowMS shape the per-source fetch quota.
	SourceMaxAttempts int `koanf:"source_max_attempts"`
	SourceWindowMS    int `koanf:"source_window_ms"`

	// SyncConcurrency bounds how many source adapters fetch at once.
	SyncConcurrency int `koanf:"sync_concurrency"`

	// ProviderName selects the enrichment provider implementation.
	ProviderName string `koanf:"provider_name"`

	// ProviderEndpoint overrides the provider base URL (OpenAI-compatible).
	ProviderEndpoint string `koanf:"provider_endpoint"`

	// ProviderAPIKey carries provider credentials.
	ProviderAPIKey string `koanf:"provider_api_key"`

	// ProviderModel names the LLM used for enrichment.
	ProviderModel string `koanf:"provider_model"`

	// ProviderTier names the rate-limit tier: free, tier1, tier4.
	ProviderTier string `koanf:"provider_tier"`

	// ValidationMaxAttempts bounds retries per validation job.
	ValidationMaxAttempts int `koanf:"validation_max_attempts"`

	// ValidationQueueSize bounds the pending job queue.
	ValidationQueueSize int `koanf:"validation_queue_size"`

	// BrowseMaxAttempts and BrowseWindowMS shape the lenient browse quota.
	BrowseMaxAttempts int `koanf:"browse_max_attempts"`
	BrowseWindowMS    int `koanf:"browse_window_ms"`

	// LLMMaxAttempts and LLMWindowMS shape the strict provider quota.
	LLMMaxAttempts int `koanf:"llm_max_attempts"`
	LLMWindowMS    int `koanf:"llm_window_ms"`

	// AllowedOrigins lists origins the inbound proxy guard accepts.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// CustomNSFWKeywords extends the safety classifier term list.
	CustomNSFWKeywords []string `koanf:"custom_nsfw_keywords"`

	// MaxModelsLimit caps GET /models?limit.
	MaxModelsLimit int `koanf:"max_models_limit"`
}

// New creates a Config with defaults applied.
func New() *Config {
	c := &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		StorePath:             "",
		Sources:               []string{"huggingface", "civitai", "tensorart"},
		SourcePageSize:        100,
		SourceMaxPages:        5,
		SourceMaxAttempts:     10,
		SourceWindowMS:        60_000,
		SyncConcurrency:       runtime.NumCPU(),
		ProviderName:          "openai",
		ProviderEndpoint:      "",
		ProviderModel:         "gpt-4o-mini",
		ProviderTier:          "free",
		ValidationMaxAttempts: 3,
		ValidationQueueSize:   1000,
		BrowseMaxAttempts:     100,
		BrowseWindowMS:        60_000,
		LLMMaxAttempts:        20,
		LLMWindowMS:           60_000,
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
		MaxModelsLimit:        500,
	}
	return c
}

// Package repository defines the canonical model store interface and
// its in-memory and file-backed implementations.
//
// The store is the single source of truth for catalog records. Nothing
// writes Model records directly: all mutations flow through the merge
// engine and land here via Save.
package repository

import (
	"context"

	"github.com/corralhq/corral/internal/domain/model"
)

// Store provides durable access to the canonical model set plus a
// small metadata keyspace for bookkeeping (last sync time, scan
// versions and the like).
type Store interface {
	// Load returns the full canonical model set.
	Load(ctx context.Context) ([]model.Model, error)

	// Save replaces the canonical model set.
	Save(ctx context.Context, models []model.Model) error

	// LoadMetadata returns the value for key.
	// Returns ErrMetadataNotFound if the key is unknown.
	LoadMetadata(ctx context.Context, key string) (string, error)

	// SaveMetadata stores a value under key.
	SaveMetadata(ctx context.Context, key, value string) error
}

package repository

import (
	"context"
	"sync"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/metrics"
)

// MemStore implements Store in memory. It is the default backend and
// the one tests use.
type MemStore struct {
	mu       sync.RWMutex
	models   []model.Model
	metadata map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		metadata: make(map[string]string),
	}
}

// Load returns a deep copy of the model set so callers cannot mutate
// stored records behind the merge engine's back.
func (s *MemStore) Load(ctx context.Context) ([]model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Model, len(s.models))
	for i, m := range s.models {
		out[i] = m.Clone()
	}
	return out, nil
}

// Save replaces the model set with a deep copy of models.
func (s *MemStore) Save(ctx context.Context, models []model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models = make([]model.Model, len(models))
	for i, m := range models {
		s.models[i] = m.Clone()
	}
	metrics.UpdateStoreModelsTotal(len(s.models))
	return nil
}

// LoadMetadata returns the value stored under key.
func (s *MemStore) LoadMetadata(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.metadata[key]
	if !ok {
		return "", ErrMetadataNotFound
	}
	return v, nil
}

// SaveMetadata stores value under key.
func (s *MemStore) SaveMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata[key] = value
	return nil
}

// Count returns the number of stored models.
func (s *MemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

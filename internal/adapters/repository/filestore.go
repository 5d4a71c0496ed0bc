package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/metrics"
)

// catalogFile is the on-disk JSON document. Versioned so future schema
// migrations have something to dispatch on.
type catalogFile struct {
	Version  int               `json:"version"`
	Models   []model.Model     `json:"models"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

const catalogFileVersion = 1

// FileStore implements Store on a single JSON file with atomic writes.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the JSON file at path. The
// parent directory is created if missing.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the catalog file. A missing file is an empty store, not
// an error: first run starts from nothing.
func (s *FileStore) Load(ctx context.Context) ([]model.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Models, nil
}

// Save writes the full model set, preserving existing metadata.
func (s *FileStore) Save(ctx context.Context, models []model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Models = models
	if err := s.write(doc); err != nil {
		return err
	}
	metrics.UpdateStoreModelsTotal(len(models))
	metrics.RecordStoreSaveLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// LoadMetadata returns the value stored under key.
func (s *FileStore) LoadMetadata(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := doc.Metadata[key]
	if !ok {
		return "", ErrMetadataNotFound
	}
	return v, nil
}

// SaveMetadata stores value under key, preserving the model set.
func (s *FileStore) SaveMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	doc.Metadata[key] = value
	return s.write(doc)
}

// read loads and decodes the catalog file. Must hold s.mu.
func (s *FileStore) read() (catalogFile, error) {
	doc := catalogFile{Version: catalogFileVersion}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read catalog: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode catalog: %w", err)
	}
	return doc, nil
}

// write encodes and atomically replaces the catalog file. Must hold s.mu.
func (s *FileStore) write(doc catalogFile) error {
	doc.Version = catalogFileVersion
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

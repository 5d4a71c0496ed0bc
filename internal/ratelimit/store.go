package ratelimit

import "time"

// Entry tracks one key's fixed window. Created lazily on first request
// and destroyed by window expiry during a lookup or by the sweeper.
type Entry struct {
	Key         string
	Attempts    int
	WindowStart time.Time
	LastAttempt time.Time
}

// EntryStore abstracts where windows live so the governor can be backed
// by a plain map or an external cache. Implementations need not be
// thread-safe; the governor serializes access.
type EntryStore interface {
	Get(key string) (Entry, bool)
	Put(e Entry)
	Delete(key string)
	Range(fn func(e Entry) bool)
	Len() int
}

// memoryEntryStore is the default map-backed store.
type memoryEntryStore struct {
	entries map[string]Entry
}

// NewMemoryEntryStore creates an empty in-memory entry store.
func NewMemoryEntryStore() EntryStore {
	return &memoryEntryStore{entries: make(map[string]Entry)}
}

func (s *memoryEntryStore) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

func (s *memoryEntryStore) Put(e Entry) {
	s.entries[e.Key] = e
}

func (s *memoryEntryStore) Delete(key string) {
	delete(s.entries, key)
}

func (s *memoryEntryStore) Range(fn func(e Entry) bool) {
	for _, e := range s.entries {
		if !fn(e) {
			return
		}
	}
}

func (s *memoryEntryStore) Len() int {
	return len(s.entries)
}

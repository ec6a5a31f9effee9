// Package inmem provides in-memory adapters used in development and tests.
package inmem

import (
	"context"
	"sync"
	"time"

	"mediagate/internal/domain"
)

// Store is an in-memory ResourceStore. Lookups are keyed by storage
// path; soft-deleted resources stay in the map but are never returned.
type Store struct {
	mu        sync.RWMutex
	byPath    map[string]domain.Resource
	deleted   map[string]bool
	viewCount map[string]int64
	viewedAt  map[string]time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		byPath:    make(map[string]domain.Resource),
		deleted:   make(map[string]bool),
		viewCount: make(map[string]int64),
		viewedAt:  make(map[string]time.Time),
	}
}

// Add registers a resource. Existing metadata under the same path is
// replaced.
func (s *Store) Add(res domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPath[res.Path] = res
	delete(s.deleted, res.ID)
}

// SoftDelete marks a resource as deleted; subsequent lookups miss it.
func (s *Store) SoftDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[id] = true
}

// Lookup implements media.ResourceStore.
func (s *Store) Lookup(_ context.Context, path string) (domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.byPath[path]
	if !ok || s.deleted[res.ID] {
		return domain.Resource{}, domain.ErrNotFound
	}
	return res, nil
}

// RecordView implements media.ResourceStore.
func (s *Store) RecordView(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewCount[id]++
	s.viewedAt[id] = time.Now()
	return nil
}

// Views returns the recorded view count for a resource (for testing).
func (s *Store) Views(id string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewCount[id]
}

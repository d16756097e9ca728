// Package mock provides a test double for the embedcache.Store interface.
//
// Store behaves as a working in-memory cache (Set really stores, Get really
// returns) so tests can exercise warm-cache paths, while GetErr/SetErr force
// backend failures and the call records verify lookup traffic.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
)

// GetCall records a single invocation of Get.
type GetCall struct {
	// Key is the cache key requested.
	Key string
}

// SetCall records a single invocation of Set.
type SetCall struct {
	// Key is the cache key written.
	Key string
	// Vec is a copy of the vector written.
	Vec []float32
	// TTL is the ttl passed to Set.
	TTL time.Duration
}

// Store is a mock implementation of embedcache.Store.
type Store struct {
	mu sync.Mutex

	// --- Configurable state ---

	// Entries holds the cache content. Pre-populate it to simulate a warm
	// cache; Set adds to it unless SetErr is set.
	Entries map[string][]float32

	// GetErr, if non-nil, is returned by every Get.
	GetErr error

	// SetErr, if non-nil, is returned by every Set (and the write is dropped).
	SetErr error

	// --- Call records ---

	// GetCalls records every call to Get in order.
	GetCalls []GetCall

	// SetCalls records every call to Set in order.
	SetCalls []SetCall
}

// Get records the call and returns the entry for key, if any.
func (s *Store) Get(_ context.Context, key string) ([]float32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = append(s.GetCalls, GetCall{Key: key})
	if s.GetErr != nil {
		return nil, false, s.GetErr
	}
	vec, ok := s.Entries[key]
	if !ok {
		return nil, false, nil
	}
	return vec, true, nil
}

// Set records the call and stores vec under key.
func (s *Store) Set(_ context.Context, key string, vec []float32, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.SetCalls = append(s.SetCalls, SetCall{Key: key, Vec: cp, TTL: ttl})
	if s.SetErr != nil {
		return s.SetErr
	}
	if s.Entries == nil {
		s.Entries = make(map[string][]float32)
	}
	s.Entries[key] = cp
	return nil
}

// Reset clears all recorded calls and entries. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = nil
	s.SetCalls = nil
	s.Entries = nil
}

// Ensure Store implements embedcache.Store at compile time.
var _ embedcache.Store = (*Store)(nil)

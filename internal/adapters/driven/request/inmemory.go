package request

import (
	"sync"
	"time"

	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// InMemoryRequestStore stores pending AuthnRequest IDs for replay protection.
// Request IDs are single-use and expire after the configured duration.
type InMemoryRequestStore struct {
	mu      sync.Mutex
	entries map[string]time.Time

	done      chan struct{}
	closeOnce sync.Once
	onCleanup func(removed int)
}

// Option configures an InMemoryRequestStore.
type Option func(*InMemoryRequestStore)

// WithOnCleanup registers a callback invoked after each background cleanup
// pass with the number of expired entries removed. Used for observability.
func WithOnCleanup(fn func(removed int)) Option {
	return func(s *InMemoryRequestStore) {
		s.onCleanup = fn
	}
}

// NewInMemoryRequestStore creates a store WITHOUT background cleanup.
// Expired entries are still rejected by Valid and skipped by GetAll, but
// they are only reclaimed lazily.
func NewInMemoryRequestStore() *InMemoryRequestStore {
	return &InMemoryRequestStore{
		entries: make(map[string]time.Time),
	}
}

// NewInMemoryRequestStoreWithCleanup creates a store with a background
// goroutine that reclaims expired entries every interval.
// Call Close when the store is no longer needed.
func NewInMemoryRequestStoreWithCleanup(interval time.Duration, opts ...Option) *InMemoryRequestStore {
	s := NewInMemoryRequestStore()
	for _, opt := range opts {
		opt(s)
	}
	s.done = make(chan struct{})
	go s.cleanupLoop(interval)
	return s
}

// Store adds a request ID with the given expiry time.
func (s *InMemoryRequestStore) Store(requestID string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[requestID] = expiry
	return nil
}

// Valid checks if a request ID exists and is not expired.
// If valid, the ID is removed (single-use) and returns true.
// Returns false for unknown or expired IDs.
func (s *InMemoryRequestStore) Valid(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.entries[requestID]
	if !exists {
		return false
	}

	if time.Now().After(expiry) {
		delete(s.entries, requestID)
		return false
	}

	// Single-use: remove after validation
	delete(s.entries, requestID)
	return true
}

// GetAll returns all non-expired request IDs.
func (s *InMemoryRequestStore) GetAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var ids []string
	for id, expiry := range s.entries {
		if now.Before(expiry) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close stops the background cleanup goroutine, if any.
func (s *InMemoryRequestStore) Close() error {
	s.closeOnce.Do(func() {
		if s.done != nil {
			close(s.done)
		}
	})
	return nil
}

func (s *InMemoryRequestStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			removed := s.cleanup()
			if s.onCleanup != nil {
				s.onCleanup(removed)
			}
		}
	}
}

func (s *InMemoryRequestStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Ensure InMemoryRequestStore implements ports.RequestStore
var _ ports.RequestStore = (*InMemoryRequestStore)(nil)

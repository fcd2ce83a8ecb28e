package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

type entry struct {
	session   *domain.Session
	expiresAt time.Time // zero means never
}

// Store implements ports.SessionStore in memory.
// Safe for concurrent use. Sessions expire lazily on access when a TTL is set.
type Store struct {
	data map[string]entry
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the inactivity expiration for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a copy of the session.
func (s *Store) Save(ctx context.Context, key string, session *domain.Session) error {
	e := entry{session: session.Clone()}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = e
	return nil
}

// Load retrieves a copy of the session so callers can't mutate store state by pointer.
func (s *Store) Load(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.expired(e) {
		s.mu.Lock()
		// Re-check: a Save may have refreshed the entry in between.
		if cur, ok := s.data[key]; ok && s.expired(cur) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns live sessions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if !s.expired(e) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

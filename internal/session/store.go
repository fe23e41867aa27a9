package session

import (
	"context"
	"sync"

	"github.com/desertthunder/tunebridge/internal/models"
)

// Store holds the current session. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	session   models.Session
	persister Persister
}

// NewStore creates an unauthenticated store. A nil persister keeps nothing.
func NewStore(p Persister) *Store {
	if p == nil {
		p = NopPersister{}
	}
	return &Store{persister: p}
}

// Get returns a copy of the current session.
func (s *Store) Get() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Set replaces the session in memory. When the token record changed and is non-nil it is also persisted;
// the in-memory value is updated even when persisting fails.
func (s *Store) Set(ctx context.Context, session models.Session) error {
	s.mu.Lock()
	changed := session.Token != nil && session.Token != s.session.Token
	s.session = session
	s.mu.Unlock()

	if !changed {
		return nil
	}
	return s.persister.Save(ctx, session.Token)
}

// SetStatus changes only the status.
func (s *Store) SetStatus(status models.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Status = status
}

// Clear resets the session to unauthenticated and removes any persisted record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.session = models.Session{Status: models.Unauthenticated}
	s.mu.Unlock()

	return s.persister.Clear(ctx)
}

// Restore loads the persisted record into memory without changing the status.
func (s *Store) Restore(ctx context.Context) (*models.TokenRecord, error) {
	rec, err := s.persister.Load(ctx)
	if err != nil || rec == nil {
		return nil, err
	}

	s.mu.Lock()
	s.session.Token = rec
	s.mu.Unlock()
	return rec, nil
}

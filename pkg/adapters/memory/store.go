package memory

import (
	"context"
	"sync"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.CallSession
	mu   sync.RWMutex
}

// NewStore creates a new in-memory session store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.CallSession),
	}
}

// Save persists the session in memory. The session is cloned so callers
// can't mutate stored state through retained pointers.
func (s *Store) Save(ctx context.Context, callID string, session *domain.CallSession) error {
	cp := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[callID] = cp
	return nil
}

// Load retrieves a clone of the session from memory.
func (s *Store) Load(ctx context.Context, callID string) (*domain.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[callID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return session.Clone(), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, callID)
	return nil
}

// List returns active call IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls := make([]string, 0, len(s.data))
	for id := range s.data {
		calls = append(calls, id)
	}
	return calls, nil
}

package identity

import (
	"context"
	"sync"
	"time"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// InMemoryStore keeps principals in a map. It favors clarity over performance
// and doubles as the reference implementation for the store contract in tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	principals map[id.PrincipalID]Principal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{principals: make(map[id.PrincipalID]Principal)}
}

func (s *InMemoryStore) Create(_ context.Context, principal Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.principals[principal.ID]; exists {
		return sentinel.ErrConflict
	}
	s.principals[principal.ID] = principal
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, principalID id.PrincipalID) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	principal, ok := s.principals[principalID]
	if !ok {
		return Principal{}, sentinel.ErrNotFound
	}
	return principal, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Principal, 0, len(s.principals))
	for _, principal := range s.principals {
		out = append(out, principal)
	}
	return out, nil
}

func (s *InMemoryStore) SetDID(_ context.Context, principalID id.PrincipalID, did id.DID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.principals[principalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	principal.DID = did
	s.principals[principalID] = principal
	return nil
}

func (s *InMemoryStore) AdjustScore(_ context.Context, principalID id.PrincipalID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.principals[principalID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	principal.Score += delta
	s.principals[principalID] = principal
	return principal.Score, nil
}

func (s *InMemoryStore) SetScore(_ context.Context, principalID id.PrincipalID, score int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.principals[principalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	principal.Score = score
	s.principals[principalID] = principal
	return nil
}

func (s *InMemoryStore) Disable(_ context.Context, principalID id.PrincipalID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.principals[principalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if principal.DisabledAt == nil {
		principal.DisabledAt = &at
		s.principals[principalID] = principal
	}
	return nil
}

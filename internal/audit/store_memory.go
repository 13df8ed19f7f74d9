package audit

import (
	"context"
	"sync"

	id "sovid/pkg/domain"
)

// InMemoryStore keeps the audit trail in a slice. It satisfies OutboxStore so
// the forwarder can be exercised without Postgres.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	published map[string]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[string]bool)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principal id.PrincipalID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, event := range s.events {
		if event.Principal == principal {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *InMemoryStore) NextBatch(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, event := range s.events {
		if s.published[event.ID] {
			continue
		}
		out = append(out, event)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eventID := range eventIDs {
		s.published[eventID] = true
	}
	return nil
}

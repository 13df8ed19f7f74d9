package reputation

import (
	"context"
	"sync"

	id "sovid/pkg/domain"
)

// InMemoryEventStore keeps per-principal event slices. The store mutex makes
// append-and-assign-seq atomic, which is exactly the serialization the
// contract requires.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[id.PrincipalID][]Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{events: make(map[id.PrincipalID][]Event)}
}

func (s *InMemoryEventStore) Append(_ context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Seq = int64(len(s.events[event.Principal])) + 1
	s.events[event.Principal] = append(s.events[event.Principal], event)
	return event, nil
}

func (s *InMemoryEventStore) ListByPrincipal(_ context.Context, principal id.PrincipalID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[principal]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}

func (s *InMemoryEventStore) Sum(_ context.Context, principal id.PrincipalID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	for _, event := range s.events[principal] {
		sum += event.Delta
	}
	return sum, nil
}

package verification

import (
	"context"
	"sync"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// InMemoryStore keeps requests in a map with version CAS under a mutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]Request)}
}

func (s *InMemoryStore) Create(_ context.Context, request Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.ID]; ok {
		return sentinel.ErrConflict
	}
	request.Version = 1
	s.requests[request.ID] = request
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.RequestID) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[requestID]
	if !ok {
		return Request{}, sentinel.ErrNotFound
	}
	return request, nil
}

func (s *InMemoryStore) Update(_ context.Context, request Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[request.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != request.Version {
		return sentinel.ErrConflict
	}
	request.Version++
	s.requests[request.ID] = request
	return nil
}

package credential

import (
	"context"
	"sync"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// InMemoryStore keeps credential records in a map. Used in tests and the
// memory backend.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

type recordKey struct {
	owner id.PrincipalID
	ref   id.CredentialRef
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{owner: record.Owner, ref: record.Ref}
	if _, ok := s.records[key]; ok {
		return sentinel.ErrConflict
	}
	s.records[key] = record
	return nil
}

func (s *InMemoryStore) FindByRef(_ context.Context, owner id.PrincipalID, ref id.CredentialRef) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordKey{owner: owner, ref: ref}]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return record, nil
}

func (s *InMemoryStore) Exists(_ context.Context, owner id.PrincipalID, ref id.CredentialRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[recordKey{owner: owner, ref: ref}]
	return ok, nil
}

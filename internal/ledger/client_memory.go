package ledger

import (
	"context"
	"sync"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// InMemoryClient is a process-local registry for development and tests. It
// enforces the same invariants as the real registry: DID values are unique and
// entries are immutable.
type InMemoryClient struct {
	mu     sync.RWMutex
	byDID  map[id.DID]id.PrincipalID
	byOwnr map[id.PrincipalID]id.DID
}

func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		byDID:  make(map[id.DID]id.PrincipalID),
		byOwnr: make(map[id.PrincipalID]id.DID),
	}
}

func (c *InMemoryClient) Write(_ context.Context, did id.DID, owner id.PrincipalID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byDID[did]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := c.byOwnr[owner]; exists {
		return sentinel.ErrInvalidState
	}
	c.byDID[did] = owner
	c.byOwnr[owner] = did
	return nil
}

func (c *InMemoryClient) Read(_ context.Context, did id.DID) (id.PrincipalID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.byDID[did]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return owner, nil
}

func (c *InMemoryClient) OwnerDID(_ context.Context, owner id.PrincipalID) (id.DID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	did, ok := c.byOwnr[owner]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return did, nil
}

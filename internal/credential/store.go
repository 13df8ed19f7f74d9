package credential

import (
	"context"

	id "sovid/pkg/domain"
)

// Store persists credential records. Refs are unique per owner.
type Store interface {
	// Save inserts a record, sentinel.ErrConflict if the owner already holds
	// the ref.
	Save(ctx context.Context, record Record) error

	// FindByRef returns the owner's record, sentinel.ErrNotFound if absent.
	FindByRef(ctx context.Context, owner id.PrincipalID, ref id.CredentialRef) (Record, error)

	// Exists reports whether the owner holds the ref.
	Exists(ctx context.Context, owner id.PrincipalID, ref id.CredentialRef) (bool, error)
}

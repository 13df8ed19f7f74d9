// Package ledger is the port to the append-only DID registry. The registry is
// external and authoritative: uniqueness of DID values is enforced there, not
// in our stores.
package ledger

import (
	"context"

	id "sovid/pkg/domain"
)

// Client abstracts the registry RPC surface.
//
// Write is not idempotent and must never be blindly retried after an ambiguous
// response; callers re-query with OwnerDID first. Entries are immutable once
// written.
type Client interface {
	// Write registers did as owned by owner. Returns sentinel.ErrConflict when
	// the DID value is already registered, sentinel.ErrInvalidState when the
	// owner already holds a registry entry, and sentinel.ErrAmbiguous when the
	// response is timeout-shaped and the write may or may not have committed.
	Write(ctx context.Context, did id.DID, owner id.PrincipalID) error

	// Read returns the owning principal of a DID, sentinel.ErrNotFound if the
	// DID is not registered.
	Read(ctx context.Context, did id.DID) (id.PrincipalID, error)

	// OwnerDID returns the DID registered for a principal, sentinel.ErrNotFound
	// if none. This is the query used to disambiguate after a timeout and to
	// find entries missing a mirror during reconciliation.
	OwnerDID(ctx context.Context, owner id.PrincipalID) (id.DID, error)
}

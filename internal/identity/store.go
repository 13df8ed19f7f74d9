package identity

import (
	"context"
	"time"

	id "sovid/pkg/domain"
)

// Store persists Principal documents. Implementations return
// pkg/platform/sentinel errors for infrastructure facts; the services translate
// them into domain errors.
//
// AdjustScore must be atomic with respect to concurrent calls on the same
// principal: implementations use a native atomic-increment primitive (Redis
// HINCRBY, SQL `score = score + $n`) or a lock, never an unguarded
// read-modify-write.
type Store interface {
	// Create inserts a new principal, sentinel.ErrConflict if the ID exists.
	Create(ctx context.Context, principal Principal) error

	// FindByID returns the principal, sentinel.ErrNotFound if absent.
	FindByID(ctx context.Context, principalID id.PrincipalID) (Principal, error)

	// List returns all principals. Used by the reconciliation pass.
	List(ctx context.Context) ([]Principal, error)

	// SetDID mirrors a ledger-confirmed DID onto the principal document. The
	// write is a last-write-wins upsert keyed by principal ID, which makes the
	// mirror step idempotent and safe to retry.
	SetDID(ctx context.Context, principalID id.PrincipalID, did id.DID) error

	// AdjustScore atomically adds delta to the cached score and returns the
	// new value.
	AdjustScore(ctx context.Context, principalID id.PrincipalID, delta int64) (int64, error)

	// SetScore overwrites the cached score. Only the reconciliation pass calls
	// this, with a value recomputed from the event log.
	SetScore(ctx context.Context, principalID id.PrincipalID, score int64) error

	// Disable soft-disables the principal at the given time.
	Disable(ctx context.Context, principalID id.PrincipalID, at time.Time) error
}

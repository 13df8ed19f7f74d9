package identity

import (
	"time"

	id "sovid/pkg/domain"
)

// Principal is the off-chain document for one authenticated user. The DID
// field mirrors the ledger entry once issued; Score caches the sum of all
// reputation events. Both are derived state: the ledger and the event log stay
// authoritative and the mirror is rebuilt by reconciliation after partial
// failures.
type Principal struct {
	ID         id.PrincipalID
	DID        id.DID
	Score      int64
	CreatedAt  time.Time
	DisabledAt *time.Time
}

// Disabled reports whether the principal has been soft-disabled. Principals
// are never hard-deleted so the reputation and verification history stays
// auditable.
func (p Principal) Disabled() bool { return p.DisabledAt != nil }

// HasDID reports whether a DID has been mirrored for this principal.
func (p Principal) HasDID() bool { return !p.DID.IsZero() }

// IssuedDID is the result of a successful DID issuance. PrivateKey is the only
// proof of control, handed to the caller exactly once and never persisted.
type IssuedDID struct {
	DID        id.DID
	PrivateKey []byte
}

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sovid/internal/audit"
	"sovid/internal/identity/metrics"
	"sovid/internal/ledger"
	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
	"sovid/pkg/platform/sentinel"
	"sovid/pkg/requestcontext"
)

const (
	// maxDeriveAttempts bounds the duplicate-DID retry loop. Collisions need
	// an ed25519 public-key collision, so hitting this bound means the ledger
	// is misbehaving, not that we are unlucky.
	maxDeriveAttempts = 3

	// mirrorRetries bounds the idempotent mirror-write retry after the ledger
	// has committed.
	mirrorRetries      = 3
	mirrorRetryBackoff = 100 * time.Millisecond
)

// Registrar orchestrates DID issuance across the ledger and the identity
// store. The ledger is authoritative for uniqueness; the store mirror is a
// rebuildable projection repaired by Reconcile after partial failures.
type Registrar struct {
	store   Store
	ledger  ledger.Client
	audit   *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRegistrar(store Store, ledgerClient ledger.Client, publisher *audit.Publisher, logger *slog.Logger, m *metrics.Metrics) *Registrar {
	return &Registrar{
		store:   store,
		ledger:  ledgerClient,
		audit:   publisher,
		logger:  logger,
		metrics: m,
	}
}

// CreatePrincipal records a first-signup principal with no DID and zero score.
func (r *Registrar) CreatePrincipal(ctx context.Context, principalID id.PrincipalID) (Principal, error) {
	principal := Principal{ID: principalID, CreatedAt: requestcontext.Now(ctx)}
	if err := r.store.Create(ctx, principal); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Principal{}, dErrors.New(dErrors.CodeAlreadyRegistered, "principal already exists")
		}
		return Principal{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to create principal")
	}
	return principal, nil
}

// GetPrincipal returns the principal document, including the mirrored DID and
// cached score.
func (r *Registrar) GetPrincipal(ctx context.Context, principalID id.PrincipalID) (Principal, error) {
	principal, err := r.store.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Principal{}, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return Principal{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load principal")
	}
	return principal, nil
}

// IssueDID derives a fresh key-bound DID, registers it in the ledger, and
// mirrors it into the store. Exactly one DID is ever issued per principal:
// the ledger rejects a second write for the same owner even when two
// registrars race past the store precondition.
func (r *Registrar) IssueDID(ctx context.Context, principalID id.PrincipalID) (IssuedDID, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveIssueDuration(time.Since(start)) }()

	principal, err := r.GetPrincipal(ctx, principalID)
	if err != nil {
		return IssuedDID{}, err
	}
	if principal.Disabled() {
		return IssuedDID{}, dErrors.New(dErrors.CodeForbidden, "principal is disabled")
	}
	if principal.HasDID() {
		return IssuedDID{}, dErrors.New(dErrors.CodeAlreadyRegistered, "principal already has a DID")
	}

	// The mirror may be missing after an earlier partial failure. Repair from
	// ledger state rather than registering a second DID.
	if existing, err := r.ledger.OwnerDID(ctx, principalID); err == nil {
		r.mirror(ctx, principalID, existing)
		return IssuedDID{}, dErrors.New(dErrors.CodeAlreadyRegistered, "principal already has a ledger-registered DID")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return IssuedDID{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to query ledger state")
	}

	for attempt := 0; attempt < maxDeriveAttempts; attempt++ {
		candidate, privateKey, err := deriveDID()
		if err != nil {
			return IssuedDID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive DID")
		}

		switch err := r.ledger.Write(ctx, candidate, principalID); {
		case err == nil:
			return r.confirm(ctx, principalID, candidate, privateKey)

		case errors.Is(err, sentinel.ErrConflict):
			// Another principal holds this DID value. Re-derive.
			r.metrics.IncDuplicateRetry()
			r.logger.WarnContext(ctx, "ledger rejected duplicate DID value",
				"principal_id", principalID, "attempt", attempt+1)
			continue

		case errors.Is(err, sentinel.ErrInvalidState):
			// Lost an issuance race for this principal; surface the winner.
			if winner, lookupErr := r.ledger.OwnerDID(ctx, principalID); lookupErr == nil {
				r.mirror(ctx, principalID, winner)
			}
			return IssuedDID{}, dErrors.New(dErrors.CodeAlreadyRegistered, "principal already has a DID")

		case errors.Is(err, sentinel.ErrAmbiguous):
			// The write may have committed. Never resubmit blindly: query
			// ledger state for this principal first.
			return r.disambiguate(ctx, principalID, candidate, privateKey)

		default:
			return IssuedDID{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "ledger write failed")
		}
	}

	return IssuedDID{}, dErrors.New(dErrors.CodeInternal, "exhausted DID derivation attempts")
}

// disambiguate resolves an ambiguous ledger write by reading ledger state for
// the principal. Exactly one resubmission of the same candidate is attempted
// when the ledger shows no entry.
func (r *Registrar) disambiguate(ctx context.Context, principalID id.PrincipalID, candidate id.DID, privateKey []byte) (IssuedDID, error) {
	registered, err := r.ledger.OwnerDID(ctx, principalID)
	switch {
	case err == nil && registered == candidate:
		// The ambiguous write committed.
		return r.confirm(ctx, principalID, candidate, privateKey)
	case err == nil:
		// A concurrent issuance won while our write was in flight.
		r.mirror(ctx, principalID, registered)
		return IssuedDID{}, dErrors.New(dErrors.CodeAlreadyRegistered, "principal already has a DID")
	case errors.Is(err, sentinel.ErrNotFound):
		// No entry: the write did not commit. One resubmission of the same
		// candidate is safe because a late commit surfaces as a duplicate of
		// our own value, which we re-check below.
		switch retryErr := r.ledger.Write(ctx, candidate, principalID); {
		case retryErr == nil:
			return r.confirm(ctx, principalID, candidate, privateKey)
		case errors.Is(retryErr, sentinel.ErrConflict):
			if owner, readErr := r.ledger.Read(ctx, candidate); readErr == nil && owner == principalID {
				// The original write landed after all.
				return r.confirm(ctx, principalID, candidate, privateKey)
			}
			return IssuedDID{}, dErrors.New(dErrors.CodeDuplicateDID, "candidate DID registered to another principal")
		case errors.Is(retryErr, sentinel.ErrInvalidState):
			return IssuedDID{}, dErrors.New(dErrors.CodeAlreadyRegistered, "principal already has a DID")
		default:
			return IssuedDID{}, dErrors.Wrap(retryErr, dErrors.CodeAmbiguous, "ledger state unresolved; reconciliation will repair the mirror")
		}
	default:
		return IssuedDID{}, dErrors.Wrap(err, dErrors.CodeAmbiguous, "ledger state unresolved; reconciliation will repair the mirror")
	}
}

// confirm mirrors a ledger-committed DID and assembles the issuance result.
// The ledger entry is permanent at this point regardless of what happens to
// the mirror, so mirror failure reports pending rather than failure.
func (r *Registrar) confirm(ctx context.Context, principalID id.PrincipalID, did id.DID, privateKey []byte) (IssuedDID, error) {
	var mirrorErr error
	for attempt := 0; attempt < mirrorRetries; attempt++ {
		if mirrorErr = r.store.SetDID(ctx, principalID, did); mirrorErr == nil {
			r.metrics.IncIssued()
			r.audit.Emit(ctx, audit.Event{
				Action:    audit.ActionDIDIssued,
				Principal: principalID,
				Subject:   did.String(),
			})
			r.logger.InfoContext(ctx, "did issued",
				"principal_id", principalID, "did", did)
			return IssuedDID{DID: did, PrivateKey: privateKey}, nil
		}
		if errors.Is(mirrorErr, sentinel.ErrNotFound) {
			break
		}
		time.Sleep(mirrorRetryBackoff << attempt)
	}

	r.metrics.IncMirrorPending()
	r.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionDIDMirrorPending,
		Principal: principalID,
		Subject:   did.String(),
		Reason:    mirrorErr.Error(),
	})
	r.logger.ErrorContext(ctx, "did mirror write failed; ledger entry stands",
		"principal_id", principalID, "did", did, "error", mirrorErr)
	return IssuedDID{}, dErrors.Wrap(mirrorErr, dErrors.CodeStoreUnavailable,
		"DID registered in ledger; mirror pending reconciliation")
}

// mirror is the best-effort repair write used on AlreadyRegistered paths.
func (r *Registrar) mirror(ctx context.Context, principalID id.PrincipalID, did id.DID) {
	if err := r.store.SetDID(ctx, principalID, did); err != nil {
		r.logger.WarnContext(ctx, "mirror repair failed",
			"principal_id", principalID, "did", did, "error", err)
	}
}

// Disable soft-disables a principal. The ledger entry and history remain.
func (r *Registrar) Disable(ctx context.Context, principalID id.PrincipalID) error {
	if err := r.store.Disable(ctx, principalID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to disable principal")
	}
	return nil
}

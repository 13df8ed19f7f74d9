package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"sovid/internal/audit"
	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

const (
	reconcileTimeout     = 30 * time.Second
	reconcileConcurrency = 8
)

// Reconcile repairs mirrors left behind by partial failures: for every
// principal without a mirrored DID it queries the ledger and re-runs the
// idempotent mirror write. Runs on demand and, when configured, on a fixed
// interval. Returns the number of mirrors repaired.
func (r *Registrar) Reconcile(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	principals, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	repaired := make(chan id.PrincipalID, len(principals))
	for _, principal := range principals {
		if principal.HasDID() {
			continue
		}
		g.Go(func() error {
			did, err := r.ledger.OwnerDID(ctx, principal.ID)
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := r.store.SetDID(ctx, principal.ID, did); err != nil {
				return err
			}
			repaired <- principal.ID
			r.metrics.IncReconciled()
			r.audit.Emit(ctx, audit.Event{
				Action:    audit.ActionDIDReconciled,
				Principal: principal.ID,
				Subject:   did.String(),
			})
			return nil
		})
	}

	err = g.Wait()
	close(repaired)
	count := len(repaired)
	if count > 0 {
		r.logger.InfoContext(ctx, "did mirrors reconciled", "count", count)
	}
	return count, err
}

// RunReconciler runs Reconcile on a fixed interval until ctx is cancelled.
func (r *Registrar) RunReconciler(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				logger.ErrorContext(ctx, "reconciliation pass failed", "error", err)
			}
		}
	}
}

// Package audit captures the append-only operational trail: DID issuance,
// score adjustments, verification transitions, and side effects that failed
// and need replay. The store keeps the authoritative log; an optional
// forwarder ships it to Kafka.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "sovid/pkg/domain"
	"sovid/pkg/requestcontext"
)

// Publisher is the write side of the audit trail. Emission is best-effort for
// the calling operation: an audit append failure is logged, never propagated,
// because losing an audit row must not fail the business operation.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Emit appends an event, filling in ID, timestamp, and request ID when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"principal_id", event.Principal,
			"error", err,
		)
	}
}

// List returns the trail for one principal.
func (p *Publisher) List(ctx context.Context, principal id.PrincipalID) ([]Event, error) {
	return p.store.ListByPrincipal(ctx, principal)
}

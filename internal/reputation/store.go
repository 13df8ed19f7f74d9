package reputation

import (
	"context"

	id "sovid/pkg/domain"
)

// EventStore is the append-only reputation log. Append assigns the
// per-principal sequence number and must serialize concurrent appends for the
// same principal so sequence order matches acceptance order.
type EventStore interface {
	// Append persists the event and returns it with Seq populated.
	Append(ctx context.Context, event Event) (Event, error)

	// ListByPrincipal returns the principal's events in sequence order.
	ListByPrincipal(ctx context.Context, principal id.PrincipalID) ([]Event, error)

	// Sum returns the sum of all deltas for the principal. Used to rebuild
	// the cached score.
	Sum(ctx context.Context, principal id.PrincipalID) (int64, error)
}

package audit

import (
	"context"

	id "sovid/pkg/domain"
)

// Store persists audit events. Append-only: events are never rewritten.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPrincipal(ctx context.Context, principal id.PrincipalID) ([]Event, error)
}

// OutboxStore is a Store whose appends land in an outbox table for a forwarder
// to publish. NextBatch returns unpublished events; MarkPublished acknowledges
// them after the broker confirms.
type OutboxStore interface {
	Store
	NextBatch(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, eventIDs []string) error
}

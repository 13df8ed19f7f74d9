package reputation

import (
	"time"

	id "sovid/pkg/domain"
)

// Event is one applied delta in a principal's append-only reputation log.
// Events are never rewritten; the log is the source of truth and the cached
// score on the principal document is a rebuildable projection of it.
type Event struct {
	Principal id.PrincipalID
	// Seq is assigned by the event store at append time, monotonically per
	// principal, so event order matches the order adjustments were accepted.
	Seq       int64
	Delta     int64
	Reason    string
	Timestamp time.Time
}

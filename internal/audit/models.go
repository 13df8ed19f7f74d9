package audit

import (
	"time"

	id "sovid/pkg/domain"
)

// Action identifies what happened. Actions are stable strings; consumers
// filter on them, so renaming one is a breaking change.
type Action string

const (
	ActionDIDIssued         Action = "did_issued"
	ActionDIDMirrorPending  Action = "did_mirror_pending"
	ActionDIDReconciled     Action = "did_reconciled"
	ActionScoreAdjusted     Action = "score_adjusted"
	ActionScoreRebuilt      Action = "score_rebuilt"
	ActionAdjustReplayDue   Action = "adjust_replay_due"
	ActionVerificationMoved Action = "verification_transition"
)

// Event is one append-only audit record. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	ID        string
	Action    Action
	Principal id.PrincipalID
	// Subject names the affected entity: a DID, a verification request ID, or
	// empty when Principal says it all.
	Subject   string
	Decision  string
	Reason    string
	RequestID string
	Timestamp time.Time
}

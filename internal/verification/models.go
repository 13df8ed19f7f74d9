package verification

import (
	"time"

	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
)

// Status is a verification-request state. Requests move strictly forward:
//
//	Pending -> InReview -> Verified
//	Pending -> InReview -> Rejected
//
// Verified and Rejected are terminal. There is no shortcut out of Pending:
// malformed requests never get created in the first place, and resolution
// always goes through review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// CanTransition reports whether the move from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInReview
	case StatusInReview:
		return next == StatusVerified || next == StatusRejected
	default:
		return false
	}
}

// ParseOutcome validates a terminal outcome supplied by a verifier.
func ParseOutcome(raw string) (Status, error) {
	switch Status(raw) {
	case StatusVerified:
		return StatusVerified, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "outcome must be verified or rejected")
	}
}

// Request is one verification request. Version guards concurrent updates:
// stores reject a write whose version does not match the stored one, so
// racing transitions serialize and exactly one wins.
type Request struct {
	ID            id.RequestID
	Subject       id.PrincipalID
	CredentialRef id.CredentialRef
	Verifier      id.PrincipalID
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
	Version       int64
}

package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a uniqueness constraint or optimistic-concurrency check lost
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrAmbiguous: the call timed out and may or may not have committed
// - ErrUnavailable: store or remote collaborator temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrAmbiguous    = errors.New("ambiguous")
	ErrUnavailable  = errors.New("unavailable")
)

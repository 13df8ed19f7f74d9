// Package dErrors defines coded domain errors for the identity and trust
// service. Services construct these at the point where an infrastructure fact
// (a sentinel error, a ledger response) becomes a domain outcome; the transport
// layer translates codes into HTTP statuses without inspecting messages.
package dErrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code. Codes are part of the public
// API surface: clients match on them, so renaming one is a breaking change.
type Code string

const (
	// Invariant-violating conditions. Surfaced to the caller unchanged; they
	// indicate a caller logic error or a lost race, not a transient fault.
	CodeAlreadyRegistered = Code("already_registered")
	CodeDuplicateDID      = Code("duplicate_did")
	CodeInvalidTransition = Code("invalid_transition")
	CodeAlreadyResolved   = Code("already_resolved")

	// Validation failures.
	CodeNoOpAdjustment    = Code("noop_adjustment")
	CodeInvalidCredential = Code("invalid_credential")
	CodeInvalidInput      = Code("invalid_input")
	CodeBadRequest        = Code("bad_request")

	// Resource facts.
	CodeNotFound  = Code("not_found")
	CodeForbidden = Code("forbidden")

	// Transport / auth.
	CodeUnauthorized = Code("unauthorized")

	// Transient and ambiguous faults. Ambiguous means the operation may or may
	// not have committed; callers must re-query state before resubmitting.
	CodeAmbiguous        = Code("ambiguous")
	CodeStoreUnavailable = Code("store_unavailable")
	CodeInternal         = Code("internal_error")
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is / errors.As for store-level sentinel checks.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost message carried by err, or empty.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

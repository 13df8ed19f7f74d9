// Package domain defines the typed identifiers shared across the service.
//
// IDs are distinct Go types so the compiler rejects cross-wiring (passing a
// verifier where a subject is expected). Construct them via the Parse*
// functions at trust boundaries; direct casting bypasses validation.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "sovid/pkg/domain-errors"
)

// PrincipalID identifies an authenticated principal. The value is opaque and
// assigned by the external authentication service; we validate shape only.
type PrincipalID string

func (p PrincipalID) String() string { return string(p) }

// IsZero reports whether the ID is unset.
func (p PrincipalID) IsZero() bool { return p == "" }

const maxPrincipalIDLen = 128

// ParsePrincipalID validates an externally supplied principal identifier.
func ParsePrincipalID(raw string) (PrincipalID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal id must not be empty")
	}
	if len(raw) > maxPrincipalIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal id must be 128 characters or less")
	}
	return PrincipalID(raw), nil
}

// DID is a decentralized identifier anchored in the ledger. Only did:key
// values are produced by this service.
type DID string

func (d DID) String() string { return string(d) }

// IsZero reports whether the DID is unset.
func (d DID) IsZero() bool { return d == "" }

// DIDKeyPrefix is the method prefix for ledger-anchored identifiers.
const DIDKeyPrefix = "did:key:"

// ParseDID validates an externally supplied DID string.
func ParseDID(raw string) (DID, error) {
	if !strings.HasPrefix(raw, DIDKeyPrefix) || len(raw) == len(DIDKeyPrefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did must be a non-empty did:key identifier")
	}
	return DID(raw), nil
}

// RequestID identifies a verification request.
type RequestID uuid.UUID

func (r RequestID) String() string { return uuid.UUID(r).String() }

// IsNil reports whether the ID is the zero UUID.
func (r RequestID) IsNil() bool { return uuid.UUID(r) == uuid.Nil }

// NewRequestID generates a fresh request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// ParseRequestID validates an externally supplied request identifier.
func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return RequestID{}, dErrors.New(dErrors.CodeInvalidInput, "request id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return RequestID{}, dErrors.New(dErrors.CodeInvalidInput, "request id must not be the nil UUID")
	}
	return RequestID(parsed), nil
}

// CredentialRef references a credential record owned by a principal.
type CredentialRef string

func (c CredentialRef) String() string { return string(c) }

// IsZero reports whether the ref is unset.
func (c CredentialRef) IsZero() bool { return c == "" }

const maxCredentialRefLen = 255

// ParseCredentialRef validates an externally supplied credential reference.
func ParseCredentialRef(raw string) (CredentialRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential ref must not be empty")
	}
	if len(raw) > maxCredentialRefLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential ref must be 255 characters or less")
	}
	return CredentialRef(raw), nil
}

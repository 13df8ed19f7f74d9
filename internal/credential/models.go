package credential

import (
	"time"

	id "sovid/pkg/domain"
)

// Record is a credential held by a principal. The payload is opaque to this
// service; verification only cares that the record exists for the subject.
type Record struct {
	Ref      id.CredentialRef
	Owner    id.PrincipalID
	Type     string
	Issuer   string
	IssuedAt time.Time
	Payload  []byte
}

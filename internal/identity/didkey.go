package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	id "sovid/pkg/domain"
)

// ed25519 multicodec prefix per the did:key method registry.
var ed25519Multicodec = []byte{0xed, 0x01}

// deriveDID generates a fresh ed25519 key pair and encodes the public key as a
// did:key identifier (multibase base64url, 'u' prefix). The DID value is bound
// to the key: collisions require an ed25519 public-key collision, so the
// registrar's duplicate-retry loop exists only to absorb ledger races.
func deriveDID() (id.DID, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("generate did key: %w", err)
	}
	encoded := make([]byte, 0, len(ed25519Multicodec)+len(pub))
	encoded = append(encoded, ed25519Multicodec...)
	encoded = append(encoded, pub...)
	did := id.DID(id.DIDKeyPrefix + "u" + base64.RawURLEncoding.EncodeToString(encoded))
	return did, priv, nil
}

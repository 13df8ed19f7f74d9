package httptransport

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
)

// TokenValidator checks HS256 bearer tokens minted by the authentication
// service. The subject claim carries the principal ID.
type TokenValidator struct {
	signingKey []byte
}

func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(signingKey)}
}

const bearerPrefix = "Bearer "

// Authenticate extracts and validates the bearer token, returning the
// authenticated principal.
func (v *TokenValidator) Authenticate(r *http.Request) (id.PrincipalID, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token missing subject claim")
	}
	principalID, err := id.ParsePrincipalID(subject)
	if err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token subject is not a valid principal id")
	}
	return principalID, nil
}

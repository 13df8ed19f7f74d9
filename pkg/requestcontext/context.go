// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them. Keeping this
// package free of net/http lets services avoid transport imports.
package requestcontext

import (
	"context"
	"time"

	id "sovid/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	principalIDKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// PrincipalID retrieves the authenticated principal from the context.
// Returns the zero value if not set.
func PrincipalID(ctx context.Context) id.PrincipalID {
	if principal, ok := ctx.Value(principalIDKey{}).(id.PrincipalID); ok {
		return principal
	}
	return ""
}

// WithPrincipalID injects a principal ID into the context.
func WithPrincipalID(ctx context.Context, principal id.PrincipalID) context.Context {
	return context.WithValue(ctx, principalIDKey{}, principal)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to time.Now()
// for non-HTTP contexts (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

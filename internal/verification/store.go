package verification

import (
	"context"

	id "sovid/pkg/domain"
)

// Store persists verification requests with per-request optimistic
// concurrency: Update compares the request's Version against the stored one
// and returns sentinel.ErrConflict on mismatch, bumping the version on
// success. Callers re-read and re-evaluate after a conflict instead of
// retrying the same write.
type Store interface {
	// Create inserts a new request, sentinel.ErrConflict if the ID exists.
	Create(ctx context.Context, request Request) error

	// FindByID returns the request, sentinel.ErrNotFound if absent.
	FindByID(ctx context.Context, requestID id.RequestID) (Request, error)

	// Update writes the request if Version matches the stored version,
	// incrementing it. sentinel.ErrConflict on version mismatch,
	// sentinel.ErrNotFound if the request does not exist.
	Update(ctx context.Context, request Request) error
}

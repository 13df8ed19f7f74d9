package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// PostgresStore persists verification requests. Requests are never deleted.
//
// Expected schema:
//
//	CREATE TABLE verification_requests (
//	    id             UUID PRIMARY KEY,
//	    subject        TEXT NOT NULL,
//	    credential_ref TEXT NOT NULL,
//	    verifier       TEXT NOT NULL,
//	    status         TEXT NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL,
//	    resolved_at    TIMESTAMPTZ,
//	    version        BIGINT NOT NULL
//	);
//
// Update is a compare-and-swap on the version column: the WHERE clause rejects
// stale writers with zero rows affected, which surfaces as
// sentinel.ErrConflict exactly like the memory and Redis stores.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, request Request) error {
	query := `
		INSERT INTO verification_requests
			(id, subject, credential_ref, verifier, status, created_at, updated_at, resolved_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	`
	_, err := s.db.ExecContext(ctx, query,
		request.ID.String(),
		request.Subject.String(),
		request.CredentialRef.String(),
		request.Verifier.String(),
		string(request.Status),
		request.CreatedAt,
		request.UpdatedAt,
		request.ResolvedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create verification request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (Request, error) {
	query := `
		SELECT id, subject, credential_ref, verifier, status, created_at, updated_at, resolved_at, version
		FROM verification_requests WHERE id = $1
	`
	var (
		request    Request
		rawID      string
		rawSubject string
		rawRef     string
		rawVerif   string
		rawStatus  string
		resolvedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, requestID.String()).Scan(
		&rawID, &rawSubject, &rawRef, &rawVerif, &rawStatus,
		&request.CreatedAt, &request.UpdatedAt, &resolvedAt, &request.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("find verification request: %w", err)
	}

	parsedID, err := id.ParseRequestID(rawID)
	if err != nil {
		return Request{}, fmt.Errorf("parse verification request id: %w", err)
	}
	request.ID = parsedID
	request.Subject = id.PrincipalID(rawSubject)
	request.CredentialRef = id.CredentialRef(rawRef)
	request.Verifier = id.PrincipalID(rawVerif)
	request.Status = Status(rawStatus)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		request.ResolvedAt = &t
	}
	return request, nil
}

func (s *PostgresStore) Update(ctx context.Context, request Request) error {
	query := `
		UPDATE verification_requests
		SET status = $3, updated_at = $4, resolved_at = $5, version = version + 1
		WHERE id = $1 AND version = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		request.ID.String(),
		request.Version,
		string(request.Status),
		request.UpdatedAt,
		request.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: either the request does not exist or the version is stale.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM verification_requests WHERE id = $1)`,
		request.ID.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

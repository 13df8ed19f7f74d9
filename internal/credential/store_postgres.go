package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// PostgresStore persists credential records.
//
// Expected schema:
//
//	CREATE TABLE credentials (
//	    owner_id  TEXT NOT NULL,
//	    ref       TEXT NOT NULL,
//	    cred_type TEXT NOT NULL,
//	    issuer    TEXT NOT NULL,
//	    issued_at TIMESTAMPTZ NOT NULL,
//	    payload   BYTEA,
//	    PRIMARY KEY (owner_id, ref)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	query := `
		INSERT INTO credentials (owner_id, ref, cred_type, issuer, issued_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.Owner.String(), record.Ref.String(),
		record.Type, record.Issuer, record.IssuedAt, record.Payload,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByRef(ctx context.Context, owner id.PrincipalID, ref id.CredentialRef) (Record, error) {
	query := `
		SELECT owner_id, ref, cred_type, issuer, issued_at, payload
		FROM credentials WHERE owner_id = $1 AND ref = $2
	`
	var (
		record   Record
		rawOwner string
		rawRef   string
	)
	err := s.db.QueryRowContext(ctx, query, owner.String(), ref.String()).Scan(
		&rawOwner, &rawRef, &record.Type, &record.Issuer, &record.IssuedAt, &record.Payload,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find credential: %w", err)
	}
	record.Owner = id.PrincipalID(rawOwner)
	record.Ref = id.CredentialRef(rawRef)
	return record, nil
}

func (s *PostgresStore) Exists(ctx context.Context, owner id.PrincipalID, ref id.CredentialRef) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM credentials WHERE owner_id = $1 AND ref = $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, owner.String(), ref.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check credential: %w", err)
	}
	return exists, nil
}

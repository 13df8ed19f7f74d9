package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// PostgresStore persists principals in PostgreSQL. Score adjustments run as a
// single `score = score + $n` UPDATE so the database serializes concurrent
// adjusters.
//
// Expected schema:
//
//	CREATE TABLE principals (
//	    id          TEXT PRIMARY KEY,
//	    did         TEXT NOT NULL DEFAULT '',
//	    score       BIGINT NOT NULL DEFAULT 0,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    disabled_at TIMESTAMPTZ
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, principal Principal) error {
	query := `
		INSERT INTO principals (id, did, score, created_at, disabled_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		principal.ID.String(),
		principal.DID.String(),
		principal.Score,
		principal.CreatedAt,
		principal.DisabledAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, principalID id.PrincipalID) (Principal, error) {
	query := `SELECT id, did, score, created_at, disabled_at FROM principals WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, principalID.String())
	principal, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Principal{}, fmt.Errorf("find principal: %w", err)
	}
	return principal, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Principal, error) {
	query := `SELECT id, did, score, created_at, disabled_at FROM principals ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []Principal
	for rows.Next() {
		principal, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		out = append(out, principal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate principals: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetDID(ctx context.Context, principalID id.PrincipalID, did id.DID) error {
	return s.update(ctx, `UPDATE principals SET did = $2 WHERE id = $1`, principalID.String(), did.String())
}

func (s *PostgresStore) AdjustScore(ctx context.Context, principalID id.PrincipalID, delta int64) (int64, error) {
	query := `UPDATE principals SET score = score + $2 WHERE id = $1 RETURNING score`
	var newScore int64
	err := s.db.QueryRowContext(ctx, query, principalID.String(), delta).Scan(&newScore)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("adjust score: %w", err)
	}
	return newScore, nil
}

func (s *PostgresStore) SetScore(ctx context.Context, principalID id.PrincipalID, score int64) error {
	return s.update(ctx, `UPDATE principals SET score = $2 WHERE id = $1`, principalID.String(), score)
}

func (s *PostgresStore) Disable(ctx context.Context, principalID id.PrincipalID, at time.Time) error {
	return s.update(ctx, `UPDATE principals SET disabled_at = COALESCE(disabled_at, $2) WHERE id = $1`, principalID.String(), at)
}

func (s *PostgresStore) update(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update principal rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (Principal, error) {
	var (
		principal  Principal
		rawID      string
		rawDID     string
		disabledAt sql.NullTime
	)
	if err := row.Scan(&rawID, &rawDID, &principal.Score, &principal.CreatedAt, &disabledAt); err != nil {
		return Principal{}, err
	}
	principal.ID = id.PrincipalID(rawID)
	principal.DID = id.DID(rawDID)
	if disabledAt.Valid {
		principal.DisabledAt = &disabledAt.Time
	}
	return principal, nil
}

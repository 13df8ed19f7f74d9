package reputation

import (
	"context"
	"database/sql"
	"fmt"

	id "sovid/pkg/domain"
)

// PostgresEventStore persists the reputation log.
//
// Expected schema:
//
//	CREATE TABLE reputation_events (
//	    principal_id TEXT NOT NULL,
//	    seq          BIGINT NOT NULL,
//	    delta        BIGINT NOT NULL,
//	    reason       TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (principal_id, seq)
//	);
//
// Sequence assignment takes a per-principal advisory lock for the insert
// transaction, so concurrent appenders for the same principal serialize and
// MAX(seq)+1 never collides. Appenders for different principals do not block
// each other.
type PostgresEventStore struct {
	db *sql.DB
}

func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) Append(ctx context.Context, event Event) (Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, fmt.Errorf("append reputation event: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, event.Principal.String()); err != nil {
		return Event{}, fmt.Errorf("lock reputation log: %w", err)
	}

	query := `
		INSERT INTO reputation_events (principal_id, seq, delta, reason, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4
		FROM reputation_events WHERE principal_id = $1
		RETURNING seq
	`
	err = tx.QueryRowContext(ctx, query,
		event.Principal.String(), event.Delta, event.Reason, event.Timestamp,
	).Scan(&event.Seq)
	if err != nil {
		return Event{}, fmt.Errorf("append reputation event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("commit reputation event: %w", err)
	}
	return event, nil
}

func (s *PostgresEventStore) ListByPrincipal(ctx context.Context, principal id.PrincipalID) ([]Event, error) {
	query := `
		SELECT principal_id, seq, delta, reason, created_at
		FROM reputation_events WHERE principal_id = $1 ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, principal.String())
	if err != nil {
		return nil, fmt.Errorf("list reputation events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event        Event
			rawPrincipal string
		)
		if err := rows.Scan(&rawPrincipal, &event.Seq, &event.Delta, &event.Reason, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan reputation event: %w", err)
		}
		event.Principal = id.PrincipalID(rawPrincipal)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reputation events: %w", err)
	}
	return out, nil
}

func (s *PostgresEventStore) Sum(ctx context.Context, principal id.PrincipalID) (int64, error) {
	query := `SELECT COALESCE(SUM(delta), 0) FROM reputation_events WHERE principal_id = $1`
	var sum int64
	if err := s.db.QueryRowContext(ctx, query, principal.String()).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum reputation events: %w", err)
	}
	return sum, nil
}

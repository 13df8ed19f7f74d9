package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	id "sovid/pkg/domain"
)

// PostgresStore persists audit events with an outbox flag for the Kafka
// forwarder. Kafka delivery is at-least-once: forwarder crashes between
// produce and MarkPublished re-send the batch, and consumers dedupe on event ID.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id           UUID PRIMARY KEY,
//	    action       TEXT NOT NULL,
//	    principal_id TEXT NOT NULL,
//	    subject      TEXT NOT NULL DEFAULT '',
//	    decision     TEXT NOT NULL DEFAULT '',
//	    reason       TEXT NOT NULL DEFAULT '',
//	    request_id   TEXT NOT NULL DEFAULT '',
//	    timestamp    TIMESTAMPTZ NOT NULL,
//	    published    BOOLEAN NOT NULL DEFAULT FALSE
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, action, principal_id, subject, decision, reason, request_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		event.Principal.String(),
		event.Subject,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principal id.PrincipalID) ([]Event, error) {
	query := `
		SELECT id, action, principal_id, subject, decision, reason, request_id, timestamp
		FROM audit_events WHERE principal_id = $1 ORDER BY timestamp
	`
	return s.query(ctx, query, principal.String())
}

func (s *PostgresStore) NextBatch(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, action, principal_id, subject, decision, reason, request_id, timestamp
		FROM audit_events WHERE NOT published ORDER BY timestamp LIMIT $1
	`
	return s.query(ctx, query, limit)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query := `UPDATE audit_events SET published = TRUE WHERE id = ANY($1)`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(eventIDs)); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event        Event
			action       string
			rawPrincipal string
		)
		if err := rows.Scan(&event.ID, &action, &rawPrincipal, &event.Subject,
			&event.Decision, &event.Reason, &event.RequestID, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = Action(action)
		event.Principal = id.PrincipalID(rawPrincipal)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

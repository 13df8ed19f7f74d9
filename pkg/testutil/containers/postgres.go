//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema holds every table the stores expect. Integration suites truncate
// between tests instead of recreating.
const schema = `
CREATE TABLE IF NOT EXISTS principals (
    id          TEXT PRIMARY KEY,
    did         TEXT NOT NULL DEFAULT '',
    score       BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL,
    disabled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS reputation_events (
    principal_id TEXT NOT NULL,
    seq          BIGINT NOT NULL,
    delta        BIGINT NOT NULL,
    reason       TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (principal_id, seq)
);

CREATE TABLE IF NOT EXISTS credentials (
    owner_id  TEXT NOT NULL,
    ref       TEXT NOT NULL,
    cred_type TEXT NOT NULL,
    issuer    TEXT NOT NULL,
    issued_at TIMESTAMPTZ NOT NULL,
    payload   BYTEA,
    PRIMARY KEY (owner_id, ref)
);

CREATE TABLE IF NOT EXISTS verification_requests (
    id             UUID PRIMARY KEY,
    subject        TEXT NOT NULL,
    credential_ref TEXT NOT NULL,
    verifier       TEXT NOT NULL,
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL,
    resolved_at    TIMESTAMPTZ,
    version        BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
    id           UUID PRIMARY KEY,
    action       TEXT NOT NULL,
    principal_id TEXT NOT NULL,
    subject      TEXT NOT NULL DEFAULT '',
    decision     TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL DEFAULT '',
    request_id   TEXT NOT NULL DEFAULT '',
    timestamp    TIMESTAMPTZ NOT NULL,
    published    BOOLEAN NOT NULL DEFAULT FALSE
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the service
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sovid_test"),
		tcpostgres.WithUsername("sovid"),
		tcpostgres.WithPassword("sovid"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables clears the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	_, err := p.DB.ExecContext(ctx, query)
	return err
}

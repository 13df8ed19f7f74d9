package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything cmd/server needs to wire the service. Values come
// from the environment so main stays lean.
type Config struct {
	Addr string

	// Backend selects the store implementations: "memory", "redis" or "postgres".
	Backend string

	Redis    RedisConfig
	Postgres PostgresConfig
	Ledger   LedgerConfig
	Kafka    KafkaConfig

	// JWTSigningKey verifies bearer tokens minted by the authentication service.
	JWTSigningKey string

	// VerifiedAward is the reputation delta credited when a verification
	// resolves to Verified. Zero disables the side effect.
	VerifiedAward int64

	// ReconcileInterval drives the background mirror/score reconciler.
	// Zero disables periodic runs; reconciliation stays available on demand.
	ReconcileInterval time.Duration
}

// RedisConfig configures the optional Redis backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional Postgres backend.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// LedgerConfig points at the append-only DID registry.
type LedgerConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// KafkaConfig configures the audit forwarder. Empty brokers disable it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:    envOr("SOVID_ADDR", ":8080"),
		Backend: envOr("SOVID_BACKEND", "memory"),
		Redis: RedisConfig{
			URL:          os.Getenv("SOVID_REDIS_URL"),
			PoolSize:     envInt("SOVID_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SOVID_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("SOVID_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SOVID_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SOVID_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("SOVID_POSTGRES_DSN"),
			MaxOpenConns: envInt("SOVID_POSTGRES_MAX_OPEN", 25),
			MaxIdleConns: envInt("SOVID_POSTGRES_MAX_IDLE", 5),
		},
		Ledger: LedgerConfig{
			Endpoint: os.Getenv("SOVID_LEDGER_ENDPOINT"),
			Timeout:  envDuration("SOVID_LEDGER_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			AuditTopic: envOr("SOVID_AUDIT_TOPIC", "sovid.audit.v1"),
		},
		JWTSigningKey:     envOr("SOVID_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		VerifiedAward:     int64(envInt("SOVID_VERIFIED_AWARD", 5)),
		ReconcileInterval: envDuration("SOVID_RECONCILE_INTERVAL", 0),
	}
	if brokers := os.Getenv("SOVID_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

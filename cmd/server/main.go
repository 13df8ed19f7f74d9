// Command server runs the identity and trust service: DID issuance against
// the ledger, the reputation log, and the verification workflow, exposed over
// HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sovid/internal/audit"
	"sovid/internal/credential"
	"sovid/internal/identity"
	identityMetrics "sovid/internal/identity/metrics"
	"sovid/internal/ledger"
	"sovid/internal/platform/config"
	"sovid/internal/platform/httpserver"
	"sovid/internal/platform/logger"
	"sovid/internal/platform/postgres"
	platformredis "sovid/internal/platform/redis"
	"sovid/internal/reputation"
	reputationMetrics "sovid/internal/reputation/metrics"
	httptransport "sovid/internal/transport/http"
	"sovid/internal/verification"
	verificationMetrics "sovid/internal/verification/metrics"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var (
		principals   identity.Store
		events       reputation.EventStore
		requests     verification.Store
		credentials  credential.Store
		auditStore   audit.OutboxStore
		healthChecks []httptransport.HealthChecker
	)

	switch cfg.Backend {
	case "redis":
		client, err := platformredis.New(cfg.Redis)
		if err != nil || client == nil {
			log.Error("redis backend requires SOVID_REDIS_URL", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		principals = identity.NewRedis(client.Client)
		events = reputation.NewRedisEventStore(client.Client)
		requests = verification.NewRedisStore(client.Client)
		// Credentials and audit have no Redis shape; they stay in memory
		// alongside the Redis aggregates.
		credentials = credential.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		healthChecks = append(healthChecks, client)

	case "postgres":
		db, err := postgres.Open(cfg.Postgres)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		principals = identity.NewPostgres(db)
		events = reputation.NewPostgresEventStore(db)
		credentials = credential.NewPostgresStore(db)
		auditStore = audit.NewPostgres(db)
		requests = verification.NewPostgresStore(db)

	default:
		principals = identity.NewInMemoryStore()
		events = reputation.NewInMemoryEventStore()
		requests = verification.NewInMemoryStore()
		credentials = credential.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	var ledgerClient ledger.Client
	if cfg.Ledger.Endpoint != "" {
		ledgerClient = ledger.NewHTTPClient(cfg.Ledger)
	} else {
		log.Warn("no ledger endpoint configured, using in-process ledger")
		ledgerClient = ledger.NewInMemoryClient()
	}

	publisher := audit.NewPublisher(auditStore, log)
	registrar := identity.NewRegistrar(principals, ledgerClient, publisher, log, identityMetrics.New())
	scores := reputation.NewService(events, principals, publisher, log, reputationMetrics.New())
	verifications := verification.NewService(requests, credentials, principals,
		scores, cfg.VerifiedAward, publisher, log, verificationMetrics.New())

	validator := httptransport.NewTokenValidator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(
		httptransport.NewIdentityHandler(registrar, log),
		httptransport.NewReputationHandler(scores, log),
		httptransport.NewVerificationHandler(verifications, credentials, log),
		validator,
		log,
		healthChecks...,
	)

	srv := httpserver.New(cfg.Addr, router.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	forwarder, err := audit.NewForwarder(cfg.Kafka, auditStore, log)
	if err != nil {
		log.Error("audit forwarder init failed", "error", err)
		os.Exit(1)
	}
	if forwarder != nil {
		group.Go(func() error { return forwarder.Run(ctx) })
	}

	if cfg.ReconcileInterval > 0 {
		group.Go(func() error {
			return registrar.RunReconciler(ctx, cfg.ReconcileInterval, log)
		})
		group.Go(func() error {
			ticker := time.NewTicker(cfg.ReconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if repaired, err := scores.ReconcileScores(ctx); err != nil {
						log.Error("score reconciliation failed", "error", err)
					} else if repaired > 0 {
						log.Info("score reconciliation repaired scores", "count", repaired)
					}
				}
			}
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

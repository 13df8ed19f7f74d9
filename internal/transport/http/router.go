// Package httptransport is the thin HTTP layer. Handlers delegate to the
// domain services and keep transport concerns (auth, decoding, status
// mapping) out of the domain packages.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sovid/pkg/platform/httputil"
)

// HealthChecker reports backing-store liveness for /healthz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router builds the service's HTTP surface. Business endpoints sit under /v1
// behind bearer auth; /healthz and /metrics stay open for probes and scrapes.
type Router struct {
	identity     *IdentityHandler
	reputation   *ReputationHandler
	verification *VerificationHandler
	validator    *TokenValidator
	health       []HealthChecker
	logger       *slog.Logger
}

func NewRouter(
	identity *IdentityHandler,
	reputation *ReputationHandler,
	verification *VerificationHandler,
	validator *TokenValidator,
	logger *slog.Logger,
	health ...HealthChecker,
) *Router {
	return &Router{
		identity:     identity,
		reputation:   reputation,
		verification: verification,
		validator:    validator,
		health:       health,
		logger:       logger,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(rt.logger))
	r.Use(RequestID)
	r.Use(Logger(rt.logger))

	r.Get("/healthz", rt.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireAuth(rt.validator, rt.logger))
		rt.identity.Register(r)
		rt.reputation.Register(r)
		rt.verification.Register(r)
	})

	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, checker := range rt.health {
		if checker == nil {
			continue
		}
		if err := checker.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sovid/internal/reputation"
	id "sovid/pkg/domain"
	"sovid/pkg/platform/httputil"
)

// ReputationService is the reputation surface the transport needs.
type ReputationService interface {
	Adjust(ctx context.Context, principalID id.PrincipalID, delta int64, reason string) (int64, error)
	CurrentScore(ctx context.Context, principalID id.PrincipalID) (int64, error)
	History(ctx context.Context, principalID id.PrincipalID) ([]reputation.Event, error)
}

// ReputationHandler exposes score adjustment and lookup endpoints.
type ReputationHandler struct {
	scores ReputationService
	logger *slog.Logger
}

func NewReputationHandler(scores ReputationService, logger *slog.Logger) *ReputationHandler {
	return &ReputationHandler{scores: scores, logger: logger}
}

func (h *ReputationHandler) Register(r chi.Router) {
	r.Post("/principals/{principalID}/reputation", h.handleAdjust)
	r.Get("/principals/{principalID}/reputation", h.handleGetScore)
	r.Get("/principals/{principalID}/reputation/history", h.handleHistory)
}

type adjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type scoreResponse struct {
	PrincipalID string `json:"principal_id"`
	Score       int64  `json:"score"`
}

func (h *ReputationHandler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[adjustRequest](w, r, h.logger)
	if !ok {
		return
	}

	score, err := h.scores.Adjust(r.Context(), principalID, req.Delta, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, scoreResponse{
		PrincipalID: principalID.String(),
		Score:       score,
	})
}

func (h *ReputationHandler) handleGetScore(w http.ResponseWriter, r *http.Request) {
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	score, err := h.scores.CurrentScore(r.Context(), principalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, scoreResponse{
		PrincipalID: principalID.String(),
		Score:       score,
	})
}

type eventResponse struct {
	Seq       int64     `json:"seq"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *ReputationHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.scores.History(r.Context(), principalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			Seq:       event.Seq,
			Delta:     event.Delta,
			Reason:    event.Reason,
			Timestamp: event.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

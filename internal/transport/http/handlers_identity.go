package httptransport

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sovid/internal/identity"
	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
	"sovid/pkg/platform/httputil"
	"sovid/pkg/requestcontext"
)

// IdentityService is the registrar surface the transport needs.
type IdentityService interface {
	CreatePrincipal(ctx context.Context, principalID id.PrincipalID) (identity.Principal, error)
	GetPrincipal(ctx context.Context, principalID id.PrincipalID) (identity.Principal, error)
	IssueDID(ctx context.Context, principalID id.PrincipalID) (identity.IssuedDID, error)
	Disable(ctx context.Context, principalID id.PrincipalID) error
}

// IdentityHandler exposes principal and DID endpoints.
type IdentityHandler struct {
	registrar IdentityService
	logger    *slog.Logger
}

func NewIdentityHandler(registrar IdentityService, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{registrar: registrar, logger: logger}
}

func (h *IdentityHandler) Register(r chi.Router) {
	r.Post("/principals", h.handleCreatePrincipal)
	r.Get("/principals/{principalID}", h.handleGetPrincipal)
	r.Delete("/principals/{principalID}", h.handleDisablePrincipal)
	r.Post("/dids", h.handleIssueDID)
	r.Get("/principals/{principalID}/did", h.handleGetDID)
}

type principalResponse struct {
	ID         string     `json:"id"`
	DID        string     `json:"did,omitempty"`
	Score      int64      `json:"score"`
	CreatedAt  time.Time  `json:"created_at"`
	DisabledAt *time.Time `json:"disabled_at,omitempty"`
}

func toPrincipalResponse(p identity.Principal) principalResponse {
	return principalResponse{
		ID:         p.ID.String(),
		DID:        p.DID.String(),
		Score:      p.Score,
		CreatedAt:  p.CreatedAt,
		DisabledAt: p.DisabledAt,
	}
}

// handleCreatePrincipal registers the authenticated principal on first signup.
func (h *IdentityHandler) handleCreatePrincipal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := h.registrar.CreatePrincipal(ctx, requestcontext.PrincipalID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPrincipalResponse(principal))
}

func (h *IdentityHandler) handleGetPrincipal(w http.ResponseWriter, r *http.Request) {
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	principal, err := h.registrar.GetPrincipal(r.Context(), principalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

// handleDisablePrincipal soft-disables the authenticated principal. Only a
// principal can disable itself.
func (h *IdentityHandler) handleDisablePrincipal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if principalID != requestcontext.PrincipalID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "principals may only disable themselves"))
		return
	}
	if err := h.registrar.Disable(ctx, principalID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type issueDIDResponse struct {
	DID string `json:"did"`
	// PrivateKey is returned exactly once and never stored server-side.
	PrivateKey string `json:"private_key"`
}

// handleIssueDID issues a DID for the authenticated principal.
func (h *IdentityHandler) handleIssueDID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issued, err := h.registrar.IssueDID(ctx, requestcontext.PrincipalID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issueDIDResponse{
		DID:        issued.DID.String(),
		PrivateKey: base64.RawURLEncoding.EncodeToString(issued.PrivateKey),
	})
}

type didResponse struct {
	DID string `json:"did"`
}

func (h *IdentityHandler) handleGetDID(w http.ResponseWriter, r *http.Request) {
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	principal, err := h.registrar.GetPrincipal(r.Context(), principalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !principal.HasDID() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "principal has no DID"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, didResponse{DID: principal.DID.String()})
}

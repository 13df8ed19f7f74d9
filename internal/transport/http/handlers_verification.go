package httptransport

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sovid/internal/credential"
	"sovid/internal/verification"
	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
	"sovid/pkg/platform/httputil"
	"sovid/pkg/platform/sentinel"
	"sovid/pkg/requestcontext"
)

// VerificationService is the verification surface the transport needs.
type VerificationService interface {
	Request(ctx context.Context, subject id.PrincipalID, ref id.CredentialRef, verifier id.PrincipalID) (verification.Request, error)
	BeginReview(ctx context.Context, requestID id.RequestID, verifier id.PrincipalID) (verification.Request, error)
	Resolve(ctx context.Context, requestID id.RequestID, outcome verification.Status) (verification.Request, error)
	Status(ctx context.Context, requestID id.RequestID) (verification.Request, error)
}

// CredentialService is the credential surface the transport needs.
type CredentialService interface {
	Save(ctx context.Context, record credential.Record) error
	FindByRef(ctx context.Context, owner id.PrincipalID, ref id.CredentialRef) (credential.Record, error)
}

// VerificationHandler exposes credential and verification-request endpoints.
type VerificationHandler struct {
	verifications VerificationService
	credentials   CredentialService
	logger        *slog.Logger
}

func NewVerificationHandler(verifications VerificationService, credentials CredentialService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{
		verifications: verifications,
		credentials:   credentials,
		logger:        logger,
	}
}

func (h *VerificationHandler) Register(r chi.Router) {
	r.Post("/credentials", h.handleSaveCredential)
	r.Get("/credentials/{ref}", h.handleGetCredential)
	r.Post("/verifications", h.handleRequest)
	r.Post("/verifications/{requestID}/review", h.handleBeginReview)
	r.Post("/verifications/{requestID}/resolution", h.handleResolve)
	r.Get("/verifications/{requestID}", h.handleStatus)
}

type saveCredentialRequest struct {
	Ref      string `json:"ref"`
	Type     string `json:"type"`
	Issuer   string `json:"issuer"`
	IssuedAt string `json:"issued_at"`
	Payload  string `json:"payload"`
}

// handleSaveCredential stores a credential for the authenticated principal.
func (h *VerificationHandler) handleSaveCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[saveCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}
	ref, err := id.ParseCredentialRef(req.Ref)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	issuedAt := requestcontext.Now(ctx)
	if req.IssuedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.IssuedAt)
		if err == nil {
			issuedAt = parsed
		}
	}
	var payload []byte
	if req.Payload != "" {
		payload, _ = base64.StdEncoding.DecodeString(req.Payload)
	}

	record := credential.Record{
		Ref:      ref,
		Owner:    requestcontext.PrincipalID(ctx),
		Type:     req.Type,
		Issuer:   req.Issuer,
		IssuedAt: issuedAt,
		Payload:  payload,
	}
	if err := h.credentials.Save(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeAlreadyRegistered, "credential ref already exists"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to save credential"))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"ref": ref.String()})
}

type credentialResponse struct {
	Ref      string    `json:"ref"`
	Type     string    `json:"type"`
	Issuer   string    `json:"issuer"`
	IssuedAt time.Time `json:"issued_at"`
}

// handleGetCredential returns one of the authenticated principal's own
// credential records.
func (h *VerificationHandler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := id.ParseCredentialRef(chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.credentials.FindByRef(ctx, requestcontext.PrincipalID(ctx), ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "credential not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load credential"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, credentialResponse{
		Ref:      record.Ref.String(),
		Type:     record.Type,
		Issuer:   record.Issuer,
		IssuedAt: record.IssuedAt,
	})
}

type requestVerificationRequest struct {
	CredentialRef string `json:"credential_ref"`
	Verifier      string `json:"verifier"`
}

type verificationResponse struct {
	ID            string     `json:"id"`
	Subject       string     `json:"subject"`
	CredentialRef string     `json:"credential_ref"`
	Verifier      string     `json:"verifier"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func toVerificationResponse(request verification.Request) verificationResponse {
	return verificationResponse{
		ID:            request.ID.String(),
		Subject:       request.Subject.String(),
		CredentialRef: request.CredentialRef.String(),
		Verifier:      request.Verifier.String(),
		Status:        string(request.Status),
		CreatedAt:     request.CreatedAt,
		UpdatedAt:     request.UpdatedAt,
		ResolvedAt:    request.ResolvedAt,
	}
}

// handleRequest opens a verification request with the authenticated principal
// as subject.
func (h *VerificationHandler) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[requestVerificationRequest](w, r, h.logger)
	if !ok {
		return
	}
	ref, err := id.ParseCredentialRef(req.CredentialRef)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	verifier, err := id.ParsePrincipalID(req.Verifier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.verifications.Request(ctx, requestcontext.PrincipalID(ctx), ref, verifier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVerificationResponse(request))
}

// handleBeginReview moves a pending request into review. The authenticated
// principal must be the assigned verifier.
func (h *VerificationHandler) handleBeginReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	request, err := h.verifications.BeginReview(ctx, requestID, requestcontext.PrincipalID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(request))
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

func (h *VerificationHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[resolveRequest](w, r, h.logger)
	if !ok {
		return
	}
	outcome, err := verification.ParseOutcome(req.Outcome)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.verifications.Resolve(r.Context(), requestID, outcome)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(request))
}

func (h *VerificationHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	request, err := h.verifications.Status(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(request))
}

package verification

import (
	"context"
	"errors"
	"log/slog"

	"sovid/internal/audit"
	"sovid/internal/credential"
	"sovid/internal/identity"
	"sovid/internal/verification/metrics"
	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
	"sovid/pkg/platform/sentinel"
	"sovid/pkg/requestcontext"
)

// casRetries bounds the re-read loop after an optimistic-concurrency conflict.
// A conflict means another transition landed between our read and write; we
// re-evaluate against the new state rather than blindly rewriting.
const casRetries = 3

// ScoreAwarder applies the verified-credential reputation award. Satisfied by
// the reputation service.
type ScoreAwarder interface {
	Adjust(ctx context.Context, principalID id.PrincipalID, delta int64, reason string) (int64, error)
}

// awardReason tags the reputation event granted on verification.
const awardReason = "verified-credential"

// Service drives the verification-request state machine. Transitions are the
// only writes after creation; the store's version check serializes racers so
// exactly one outcome ever wins.
type Service struct {
	store       Store
	credentials credential.Store
	principals  identity.Store
	scores      ScoreAwarder
	award       int64
	audit       *audit.Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewService(
	store Store,
	credentials credential.Store,
	principals identity.Store,
	scores ScoreAwarder,
	award int64,
	publisher *audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:       store,
		credentials: credentials,
		principals:  principals,
		scores:      scores,
		award:       award,
		audit:       publisher,
		logger:      logger,
		metrics:     m,
	}
}

// Request opens a verification request for one of the subject's credentials,
// assigned to the given verifier.
func (s *Service) Request(ctx context.Context, subject id.PrincipalID, ref id.CredentialRef, verifier id.PrincipalID) (Request, error) {
	subjectDoc, err := s.principals.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Request{}, dErrors.New(dErrors.CodeNotFound, "subject principal not found")
		}
		return Request{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load subject")
	}
	if subjectDoc.Disabled() {
		return Request{}, dErrors.New(dErrors.CodeForbidden, "subject principal is disabled")
	}
	if _, err := s.principals.FindByID(ctx, verifier); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Request{}, dErrors.New(dErrors.CodeNotFound, "verifier principal not found")
		}
		return Request{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load verifier")
	}

	exists, err := s.credentials.Exists(ctx, subject, ref)
	if err != nil {
		return Request{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to check credential")
	}
	if !exists {
		return Request{}, dErrors.New(dErrors.CodeInvalidCredential, "credential does not exist for subject")
	}

	now := requestcontext.Now(ctx)
	request := Request{
		ID:            id.NewRequestID(),
		Subject:       subject,
		CredentialRef: ref,
		Verifier:      verifier,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, request); err != nil {
		return Request{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to create verification request")
	}
	request.Version = 1

	s.emitTransition(ctx, request, "", StatusPending)
	return request, nil
}

// BeginReview moves a pending request into review by its assigned verifier.
func (s *Service) BeginReview(ctx context.Context, requestID id.RequestID, verifier id.PrincipalID) (Request, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		request, err := s.get(ctx, requestID)
		if err != nil {
			return Request{}, err
		}
		if request.Verifier != verifier {
			return Request{}, dErrors.New(dErrors.CodeForbidden, "request is assigned to a different verifier")
		}
		if !request.Status.CanTransition(StatusInReview) {
			return Request{}, dErrors.New(dErrors.CodeInvalidTransition, "request is not pending")
		}

		from := request.Status
		request.Status = StatusInReview
		request.UpdatedAt = requestcontext.Now(ctx)

		switch err := s.store.Update(ctx, request); {
		case err == nil:
			request.Version++
			s.emitTransition(ctx, request, from, StatusInReview)
			return request, nil
		case errors.Is(err, sentinel.ErrConflict):
			continue
		default:
			return Request{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to update verification request")
		}
	}
	return Request{}, dErrors.New(dErrors.CodeStoreUnavailable, "verification request update contention")
}

// Resolve records a terminal outcome. Resolving an already-resolved request
// with the same outcome is a no-op success; a conflicting outcome is
// AlreadyResolved. Only the write that actually performs the transition
// triggers the verified award, so racers never double-apply it.
func (s *Service) Resolve(ctx context.Context, requestID id.RequestID, outcome Status) (Request, error) {
	if !outcome.Terminal() {
		return Request{}, dErrors.New(dErrors.CodeInvalidInput, "outcome must be terminal")
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		request, err := s.get(ctx, requestID)
		if err != nil {
			return Request{}, err
		}
		if request.Status.Terminal() {
			if request.Status == outcome {
				return request, nil
			}
			return Request{}, dErrors.New(dErrors.CodeAlreadyResolved, "request already resolved with a different outcome")
		}
		if !request.Status.CanTransition(outcome) {
			return Request{}, dErrors.New(dErrors.CodeInvalidTransition, "request must be in review before resolution")
		}

		from := request.Status
		now := requestcontext.Now(ctx)
		request.Status = outcome
		request.UpdatedAt = now
		request.ResolvedAt = &now

		switch err := s.store.Update(ctx, request); {
		case err == nil:
			request.Version++
			s.emitTransition(ctx, request, from, outcome)
			if outcome == StatusVerified {
				s.awardVerified(ctx, request)
			}
			return request, nil
		case errors.Is(err, sentinel.ErrConflict):
			continue
		default:
			return Request{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to update verification request")
		}
	}
	return Request{}, dErrors.New(dErrors.CodeStoreUnavailable, "verification request update contention")
}

// Status returns the request's current state.
func (s *Service) Status(ctx context.Context, requestID id.RequestID) (Request, error) {
	return s.get(ctx, requestID)
}

func (s *Service) get(ctx context.Context, requestID id.RequestID) (Request, error) {
	request, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Request{}, dErrors.New(dErrors.CodeNotFound, "verification request not found")
		}
		return Request{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load verification request")
	}
	return request, nil
}

// awardVerified grants the configured reputation delta to the subject. The
// verification stands whether or not the award lands; a failed award goes to
// the audit trail for replay.
func (s *Service) awardVerified(ctx context.Context, request Request) {
	if s.scores == nil || s.award == 0 {
		return
	}
	if _, err := s.scores.Adjust(ctx, request.Subject, s.award, awardReason); err != nil {
		s.metrics.IncAwardFailure()
		s.logger.ErrorContext(ctx, "verified award failed",
			"request_id", request.ID, "subject", request.Subject, "error", err)
		s.audit.Emit(ctx, audit.Event{
			Action:    audit.ActionAdjustReplayDue,
			Principal: request.Subject,
			Subject:   request.ID.String(),
			Decision:  awardReason,
			Reason:    dErrors.MessageOf(err),
		})
	}
}

func (s *Service) emitTransition(ctx context.Context, request Request, from, to Status) {
	s.metrics.IncTransition(string(to))
	decision := string(to)
	if from != "" {
		decision = string(from) + ">" + string(to)
	}
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionVerificationMoved,
		Principal: request.Subject,
		Subject:   request.ID.String(),
		Decision:  decision,
		Reason:    request.CredentialRef.String(),
	})
	s.logger.InfoContext(ctx, "verification transition",
		"request_id", request.ID, "subject", request.Subject, "status", to)
}

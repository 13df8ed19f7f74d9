package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sovid/internal/audit"
	"sovid/internal/identity"
	"sovid/internal/reputation/metrics"
	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
	"sovid/pkg/platform/sentinel"
	"sovid/pkg/requestcontext"
)

// Service applies reputation adjustments. The event log is the source of
// truth; the cached score on the principal document is a projection updated
// atomically per adjustment and rebuilt from the log when the two drift.
type Service struct {
	events     EventStore
	principals identity.Store
	audit      *audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewService(events EventStore, principals identity.Store, publisher *audit.Publisher, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		events:     events,
		principals: principals,
		audit:      publisher,
		logger:     logger,
		metrics:    m,
	}
}

// Adjust appends a delta to the principal's reputation log and updates the
// cached score, returning the new score. The two writes are not transactional:
// if the cached-score update fails after the append, the adjustment is still
// recorded and the cache is repaired by Rebuild.
func (s *Service) Adjust(ctx context.Context, principalID id.PrincipalID, delta int64, reason string) (int64, error) {
	if delta == 0 {
		return 0, dErrors.New(dErrors.CodeNoOpAdjustment, "adjustment delta must not be zero")
	}

	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load principal")
	}
	if principal.Disabled() {
		return 0, dErrors.New(dErrors.CodeForbidden, "principal is disabled")
	}

	event, err := s.events.Append(ctx, Event{
		Principal: principalID,
		Delta:     delta,
		Reason:    reason,
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to record adjustment")
	}

	s.metrics.IncAdjustment()
	s.metrics.ObserveDelta(delta)
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionScoreAdjusted,
		Principal: principalID,
		Subject:   fmt.Sprintf("seq:%d", event.Seq),
		Decision:  fmt.Sprintf("%+d", delta),
		Reason:    reason,
	})

	score, err := s.principals.AdjustScore(ctx, principalID, delta)
	if err == nil {
		return score, nil
	}

	// The log already holds the event, so the adjustment stands. Try an
	// immediate rebuild before deferring to the reconciliation pass.
	s.logger.ErrorContext(ctx, "cached score update failed after append",
		"principal_id", principalID, "seq", event.Seq, "error", err)
	if rebuilt, rerr := s.Rebuild(ctx, principalID); rerr == nil {
		return rebuilt, nil
	}

	s.metrics.IncCachePending()
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionAdjustReplayDue,
		Principal: principalID,
		Subject:   fmt.Sprintf("seq:%d", event.Seq),
		Reason:    "cached score update failed; rebuild pending",
	})
	return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable,
		"adjustment recorded; cached score pending reconciliation")
}

// CurrentScore returns the cached score from the principal document.
func (s *Service) CurrentScore(ctx context.Context, principalID id.PrincipalID) (int64, error) {
	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load principal")
	}
	return principal.Score, nil
}

// History returns the principal's adjustment log in sequence order.
func (s *Service) History(ctx context.Context, principalID id.PrincipalID) ([]Event, error) {
	if _, err := s.principals.FindByID(ctx, principalID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load principal")
	}
	events, err := s.events.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load adjustment history")
	}
	return events, nil
}

// Rebuild recomputes the cached score from the event log and overwrites the
// projection, returning the recomputed value.
func (s *Service) Rebuild(ctx context.Context, principalID id.PrincipalID) (int64, error) {
	sum, err := s.events.Sum(ctx, principalID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to sum event log")
	}
	if err := s.principals.SetScore(ctx, principalID, sum); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to overwrite cached score")
	}
	s.metrics.IncRebuild()
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionScoreRebuilt,
		Principal: principalID,
		Decision:  fmt.Sprintf("%d", sum),
	})
	return sum, nil
}

// ReconcileScores walks all principals and rebuilds any cached score that
// disagrees with its event log. Returns the number of scores repaired.
func (s *Service) ReconcileScores(ctx context.Context) (int, error) {
	principals, err := s.principals.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list principals: %w", err)
	}

	repaired := 0
	for _, principal := range principals {
		sum, err := s.events.Sum(ctx, principal.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "score reconciliation: sum failed",
				"principal_id", principal.ID, "error", err)
			continue
		}
		if sum == principal.Score {
			continue
		}
		if _, err := s.Rebuild(ctx, principal.ID); err != nil {
			s.logger.ErrorContext(ctx, "score reconciliation: rebuild failed",
				"principal_id", principal.ID, "error", err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

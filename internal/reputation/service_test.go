package reputation

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sovid/internal/audit"
	"sovid/internal/identity"
	id "sovid/pkg/domain"
	dErrors "sovid/pkg/domain-errors"
	"sovid/pkg/platform/sentinel"
)

// faultPrincipals injects cached-score write failures.
type faultPrincipals struct {
	identity.Store

	mu            sync.Mutex
	adjustFails   int
	setScoreFails int
}

func (f *faultPrincipals) AdjustScore(ctx context.Context, principalID id.PrincipalID, delta int64) (int64, error) {
	f.mu.Lock()
	if f.adjustFails > 0 {
		f.adjustFails--
		f.mu.Unlock()
		return 0, sentinel.ErrUnavailable
	}
	f.mu.Unlock()
	return f.Store.AdjustScore(ctx, principalID, delta)
}

func (f *faultPrincipals) SetScore(ctx context.Context, principalID id.PrincipalID, score int64) error {
	f.mu.Lock()
	if f.setScoreFails > 0 {
		f.setScoreFails--
		f.mu.Unlock()
		return sentinel.ErrUnavailable
	}
	f.mu.Unlock()
	return f.Store.SetScore(ctx, principalID, score)
}

type ServiceSuite struct {
	suite.Suite
	principals *faultPrincipals
	events     EventStore
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.principals = &faultPrincipals{Store: identity.NewInMemoryStore()}
	s.events = NewInMemoryEventStore()
	publisher := audit.NewPublisher(audit.NewInMemoryStore(), slog.Default())
	s.service = NewService(s.events, s.principals, publisher, slog.Default(), nil)
}

func (s *ServiceSuite) newPrincipal(raw string) id.PrincipalID {
	principalID := id.PrincipalID(raw)
	err := s.principals.Create(context.Background(), identity.Principal{ID: principalID})
	s.Require().NoError(err)
	return principalID
}

func (s *ServiceSuite) TestAdjustAccumulates() {
	ctx := context.Background()
	principalID := s.newPrincipal("p-2")

	score, err := s.service.Adjust(ctx, principalID, 10, "endorsement")
	s.Require().NoError(err)
	s.Equal(int64(10), score)

	score, err = s.service.Adjust(ctx, principalID, -3, "dispute")
	s.Require().NoError(err)
	s.Equal(int64(7), score)

	cached, err := s.service.CurrentScore(ctx, principalID)
	s.Require().NoError(err)
	s.Equal(int64(7), cached)

	events, err := s.service.History(ctx, principalID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(int64(1), events[0].Seq)
	s.Equal(int64(10), events[0].Delta)
	s.Equal("endorsement", events[0].Reason)
	s.Equal(int64(2), events[1].Seq)
	s.Equal(int64(-3), events[1].Delta)
}

func (s *ServiceSuite) TestAdjustRejectsZeroDelta() {
	principalID := s.newPrincipal("p-zero")

	_, err := s.service.Adjust(context.Background(), principalID, 0, "nothing")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoOpAdjustment))

	events, err := s.service.History(context.Background(), principalID)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestAdjustUnknownPrincipal() {
	_, err := s.service.Adjust(context.Background(), id.PrincipalID("ghost"), 5, "endorsement")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAdjustDisabledPrincipal() {
	ctx := context.Background()
	principalID := s.newPrincipal("p-disabled")
	s.Require().NoError(s.principals.Disable(ctx, principalID, time.Now()))

	_, err := s.service.Adjust(ctx, principalID, 5, "endorsement")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestConcurrentAdjustsLoseNothing() {
	ctx := context.Background()
	principalID := s.newPrincipal("p-race")

	const racers = 16
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Adjust(ctx, principalID, 1, "endorsement")
			s.NoError(err)
		}()
	}
	wg.Wait()

	cached, err := s.service.CurrentScore(ctx, principalID)
	s.Require().NoError(err)
	s.Equal(int64(racers), cached)

	events, err := s.service.History(ctx, principalID)
	s.Require().NoError(err)
	s.Require().Len(events, racers)
	seen := make(map[int64]bool, racers)
	for _, event := range events {
		s.False(seen[event.Seq], "duplicate seq %d", event.Seq)
		seen[event.Seq] = true
	}
}

func (s *ServiceSuite) TestCachedScoreFailureRebuildsInline() {
	ctx := context.Background()
	principalID := s.newPrincipal("p-flaky")

	_, err := s.service.Adjust(ctx, principalID, 4, "endorsement")
	s.Require().NoError(err)

	s.principals.adjustFails = 1
	score, err := s.service.Adjust(ctx, principalID, 3, "endorsement")
	s.Require().NoError(err)
	s.Equal(int64(7), score, "inline rebuild recovers the cached score from the log")
}

func (s *ServiceSuite) TestCachedScoreFailureDefersToReconciliation() {
	ctx := context.Background()
	principalID := s.newPrincipal("p-down")

	s.principals.adjustFails = 1
	s.principals.setScoreFails = 1
	_, err := s.service.Adjust(ctx, principalID, 9, "endorsement")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStoreUnavailable))

	// The event was appended even though the cache write failed.
	events, err := s.service.History(ctx, principalID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	repaired, err := s.service.ReconcileScores(ctx)
	s.Require().NoError(err)
	s.Equal(1, repaired)

	cached, err := s.service.CurrentScore(ctx, principalID)
	s.Require().NoError(err)
	s.Equal(int64(9), cached)

	repaired, err = s.service.ReconcileScores(ctx)
	s.Require().NoError(err)
	s.Zero(repaired, "second pass finds nothing to repair")
}

func (s *ServiceSuite) TestRebuildMatchesEventSum() {
	ctx := context.Background()
	principalID := s.newPrincipal("p-rebuild")

	for _, delta := range []int64{5, -2, 11} {
		_, err := s.service.Adjust(ctx, principalID, delta, "endorsement")
		s.Require().NoError(err)
	}

	// Corrupt the projection, then rebuild it from the log.
	s.Require().NoError(s.principals.SetScore(ctx, principalID, 999))

	rebuilt, err := s.service.Rebuild(ctx, principalID)
	s.Require().NoError(err)
	s.Equal(int64(14), rebuilt)

	cached, err := s.service.CurrentScore(ctx, principalID)
	s.Require().NoError(err)
	s.Equal(int64(14), cached)
}

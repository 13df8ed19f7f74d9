//go:build integration

package reputation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sovid/internal/reputation"
	id "sovid/pkg/domain"
	"sovid/pkg/testutil/containers"
)

type PostgresEventStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *reputation.PostgresEventStore
}

func TestPostgresEventStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresEventStoreSuite))
}

func (s *PostgresEventStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = reputation.NewPostgresEventStore(s.postgres.DB)
}

func (s *PostgresEventStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "reputation_events"))
}

func (s *PostgresEventStoreSuite) TestAppendAssignsSequence() {
	ctx := context.Background()
	principalID := id.PrincipalID("p-1")

	for i, delta := range []int64{10, -3, 5} {
		event, err := s.store.Append(ctx, reputation.Event{
			Principal: principalID,
			Delta:     delta,
			Reason:    "endorsement",
			Timestamp: time.Now(),
		})
		s.Require().NoError(err)
		s.EqualValues(i+1, event.Seq)
	}

	sum, err := s.store.Sum(ctx, principalID)
	s.Require().NoError(err)
	s.EqualValues(12, sum)

	events, err := s.store.ListByPrincipal(ctx, principalID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.EqualValues(10, events[0].Delta)
	s.EqualValues(-3, events[1].Delta)
}

// TestConcurrentAppend verifies the advisory lock hands every racer its own
// sequence number.
func (s *PostgresEventStoreSuite) TestConcurrentAppend() {
	ctx := context.Background()
	principalID := id.PrincipalID("p-race")

	const goroutines = 20
	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event, err := s.store.Append(ctx, reputation.Event{
				Principal: principalID,
				Delta:     1,
				Reason:    "endorsement",
				Timestamp: time.Now(),
			})
			if s.NoError(err) {
				seqs <- event.Seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool, goroutines)
	for seq := range seqs {
		s.False(seen[seq], "duplicate seq %d", seq)
		seen[seq] = true
	}
	s.Len(seen, goroutines)

	sum, err := s.store.Sum(ctx, principalID)
	s.Require().NoError(err)
	s.EqualValues(goroutines, sum)
}

func (s *PostgresEventStoreSuite) TestSeparatePrincipalsSeparateSequences() {
	ctx := context.Background()

	first, err := s.store.Append(ctx, reputation.Event{
		Principal: id.PrincipalID("p-a"), Delta: 1, Reason: "endorsement", Timestamp: time.Now(),
	})
	s.Require().NoError(err)
	second, err := s.store.Append(ctx, reputation.Event{
		Principal: id.PrincipalID("p-b"), Delta: 1, Reason: "endorsement", Timestamp: time.Now(),
	})
	s.Require().NoError(err)

	s.EqualValues(1, first.Seq)
	s.EqualValues(1, second.Seq)
}

//go:build integration

package verification_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sovid/internal/verification"
	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
	"sovid/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *verification.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = verification.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) newRequest() verification.Request {
	now := time.Now().Truncate(time.Millisecond)
	request := verification.Request{
		ID:            id.NewRequestID(),
		Subject:       id.PrincipalID("subject-1"),
		CredentialRef: id.CredentialRef("cred-1"),
		Verifier:      id.PrincipalID("verifier-1"),
		Status:        verification.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Require().NoError(s.store.Create(context.Background(), request))
	request.Version = 1
	return request
}

func (s *RedisStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	request := s.newRequest()

	found, err := s.store.FindByID(ctx, request.ID)
	s.Require().NoError(err)
	s.Equal(request.ID, found.ID)
	s.Equal(verification.StatusPending, found.Status)
	s.EqualValues(1, found.Version)

	s.Require().ErrorIs(s.store.Create(ctx, request), sentinel.ErrConflict)
}

func (s *RedisStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewRequestID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestUpdateBumpsVersion() {
	ctx := context.Background()
	request := s.newRequest()

	request.Status = verification.StatusInReview
	s.Require().NoError(s.store.Update(ctx, request))

	found, err := s.store.FindByID(ctx, request.ID)
	s.Require().NoError(err)
	s.Equal(verification.StatusInReview, found.Status)
	s.EqualValues(2, found.Version)
}

func (s *RedisStoreSuite) TestStaleVersionRejected() {
	ctx := context.Background()
	request := s.newRequest()

	request.Status = verification.StatusInReview
	s.Require().NoError(s.store.Update(ctx, request))

	// Still holding version 1.
	request.Status = verification.StatusRejected
	s.Require().ErrorIs(s.store.Update(ctx, request), sentinel.ErrConflict)
}

// TestConcurrentUpdateOneWinner verifies the WATCH transaction lets exactly
// one of the racing writers through per version.
func (s *RedisStoreSuite) TestConcurrentUpdateOneWinner() {
	ctx := context.Background()
	request := s.newRequest()

	const goroutines = 10
	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			update := request
			update.Status = verification.StatusInReview
			switch err := s.store.Update(ctx, update); {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				s.Fail("unexpected error", err)
			}
		}()
	}
	wg.Wait()

	s.EqualValues(1, successes.Load())
	s.EqualValues(goroutines-1, conflicts.Load())

	found, err := s.store.FindByID(ctx, request.ID)
	s.Require().NoError(err)
	s.EqualValues(2, found.Version)
}

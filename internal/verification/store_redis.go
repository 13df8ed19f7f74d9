package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

const requestKeyPrefix = "verification:request:"

// RedisStore persists requests as JSON values. Update runs under WATCH so a
// concurrent writer invalidates the transaction; the version check inside the
// watched read turns a stale caller into sentinel.ErrConflict rather than a
// silent overwrite.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type redisRequest struct {
	ID            string     `json:"id"`
	Subject       string     `json:"subject"`
	CredentialRef string     `json:"credential_ref"`
	Verifier      string     `json:"verifier"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Version       int64      `json:"version"`
}

func requestKey(requestID id.RequestID) string {
	return requestKeyPrefix + requestID.String()
}

func encodeRequest(request Request) ([]byte, error) {
	return json.Marshal(redisRequest{
		ID:            request.ID.String(),
		Subject:       request.Subject.String(),
		CredentialRef: request.CredentialRef.String(),
		Verifier:      request.Verifier.String(),
		Status:        string(request.Status),
		CreatedAt:     request.CreatedAt,
		UpdatedAt:     request.UpdatedAt,
		ResolvedAt:    request.ResolvedAt,
		Version:       request.Version,
	})
}

func decodeRequest(raw string) (Request, error) {
	var stored redisRequest
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Request{}, fmt.Errorf("decode verification request: %w", err)
	}
	requestID, err := id.ParseRequestID(stored.ID)
	if err != nil {
		return Request{}, fmt.Errorf("decode verification request id: %w", err)
	}
	return Request{
		ID:            requestID,
		Subject:       id.PrincipalID(stored.Subject),
		CredentialRef: id.CredentialRef(stored.CredentialRef),
		Verifier:      id.PrincipalID(stored.Verifier),
		Status:        Status(stored.Status),
		CreatedAt:     stored.CreatedAt,
		UpdatedAt:     stored.UpdatedAt,
		ResolvedAt:    stored.ResolvedAt,
		Version:       stored.Version,
	}, nil
}

func (s *RedisStore) Create(ctx context.Context, request Request) error {
	request.Version = 1
	payload, err := encodeRequest(request)
	if err != nil {
		return err
	}
	claimed, err := s.client.SetNX(ctx, requestKey(request.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create verification request: %w", err)
	}
	if !claimed {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, requestID id.RequestID) (Request, error) {
	raw, err := s.client.Get(ctx, requestKey(requestID)).Result()
	if errors.Is(err, redis.Nil) {
		return Request{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("find verification request: %w", err)
	}
	return decodeRequest(raw)
}

func (s *RedisStore) Update(ctx context.Context, request Request) error {
	key := requestKey(request.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read verification request: %w", err)
		}
		stored, err := decodeRequest(raw)
		if err != nil {
			return err
		}
		if stored.Version != request.Version {
			return sentinel.ErrConflict
		}

		next := request
		next.Version++
		payload, err := encodeRequest(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// Someone else wrote between our read and the exec.
		return sentinel.ErrConflict
	}
	return err
}

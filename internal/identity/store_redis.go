package identity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

const principalKeyPrefix = "principal:"

// RedisStore persists principals as Redis hashes. Score adjustments use
// HINCRBY, the native atomic-increment primitive, so concurrent adjusters on
// the same principal never lose updates.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func principalKey(principalID id.PrincipalID) string {
	return principalKeyPrefix + principalID.String()
}

func (s *RedisStore) Create(ctx context.Context, principal Principal) error {
	key := principalKey(principal.ID)
	// HSETNX on created_at is the existence guard; the remaining fields follow
	// only when this write claims the key.
	claimed, err := s.client.HSetNX(ctx, key, "created_at", principal.CreatedAt.Format(time.RFC3339Nano)).Result()
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	if !claimed {
		return sentinel.ErrConflict
	}
	fields := map[string]any{
		"did":   principal.DID.String(),
		"score": principal.Score,
	}
	if principal.DisabledAt != nil {
		fields["disabled_at"] = principal.DisabledAt.Format(time.RFC3339Nano)
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("create principal fields: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, principalID id.PrincipalID) (Principal, error) {
	values, err := s.client.HGetAll(ctx, principalKey(principalID)).Result()
	if err != nil {
		return Principal{}, fmt.Errorf("find principal: %w", err)
	}
	if len(values) == 0 {
		return Principal{}, sentinel.ErrNotFound
	}
	return parsePrincipalHash(principalID, values)
}

func (s *RedisStore) List(ctx context.Context) ([]Principal, error) {
	var out []Principal
	iter := s.client.Scan(ctx, 0, principalKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		principalID := id.PrincipalID(iter.Val()[len(principalKeyPrefix):])
		principal, err := s.FindByID(ctx, principalID)
		if err != nil {
			// Deleted between SCAN and HGETALL; skip.
			continue
		}
		out = append(out, principal)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan principals: %w", err)
	}
	return out, nil
}

func (s *RedisStore) SetDID(ctx context.Context, principalID id.PrincipalID, did id.DID) error {
	if err := s.ensureExists(ctx, principalID); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, principalKey(principalID), "did", did.String()).Err(); err != nil {
		return fmt.Errorf("set did: %w", err)
	}
	return nil
}

func (s *RedisStore) AdjustScore(ctx context.Context, principalID id.PrincipalID, delta int64) (int64, error) {
	if err := s.ensureExists(ctx, principalID); err != nil {
		return 0, err
	}
	newScore, err := s.client.HIncrBy(ctx, principalKey(principalID), "score", delta).Result()
	if err != nil {
		return 0, fmt.Errorf("adjust score: %w", err)
	}
	return newScore, nil
}

func (s *RedisStore) SetScore(ctx context.Context, principalID id.PrincipalID, score int64) error {
	if err := s.ensureExists(ctx, principalID); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, principalKey(principalID), "score", score).Err(); err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	return nil
}

func (s *RedisStore) Disable(ctx context.Context, principalID id.PrincipalID, at time.Time) error {
	if err := s.ensureExists(ctx, principalID); err != nil {
		return err
	}
	// HSETNX keeps the first disable timestamp.
	if err := s.client.HSetNX(ctx, principalKey(principalID), "disabled_at", at.Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("disable principal: %w", err)
	}
	return nil
}

func (s *RedisStore) ensureExists(ctx context.Context, principalID id.PrincipalID) error {
	exists, err := s.client.Exists(ctx, principalKey(principalID)).Result()
	if err != nil {
		return fmt.Errorf("check principal: %w", err)
	}
	if exists == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func parsePrincipalHash(principalID id.PrincipalID, values map[string]string) (Principal, error) {
	principal := Principal{ID: principalID, DID: id.DID(values["did"])}
	if raw, ok := values["score"]; ok && raw != "" {
		score, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Principal{}, fmt.Errorf("parse score: %w", err)
		}
		principal.Score = score
	}
	if raw, ok := values["created_at"]; ok && raw != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Principal{}, fmt.Errorf("parse created_at: %w", err)
		}
		principal.CreatedAt = createdAt
	}
	if raw, ok := values["disabled_at"]; ok && raw != "" {
		disabledAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Principal{}, fmt.Errorf("parse disabled_at: %w", err)
		}
		principal.DisabledAt = &disabledAt
	}
	return principal, nil
}

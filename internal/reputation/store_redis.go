package reputation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "sovid/pkg/domain"
)

const (
	eventListKeyPrefix = "reputation:events:"
	eventSeqKeyPrefix  = "reputation:seq:"
)

// RedisEventStore appends events to a per-principal list. Sequence numbers
// come from INCR on a per-principal counter, so acceptance order is the
// counter's order even when the list pushes interleave.
type RedisEventStore struct {
	client *redis.Client
}

func NewRedisEventStore(client *redis.Client) *RedisEventStore {
	return &RedisEventStore{client: client}
}

func (s *RedisEventStore) Append(ctx context.Context, event Event) (Event, error) {
	seq, err := s.client.Incr(ctx, eventSeqKeyPrefix+event.Principal.String()).Result()
	if err != nil {
		return Event{}, fmt.Errorf("assign event seq: %w", err)
	}
	event.Seq = seq

	payload, err := json.Marshal(event)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.RPush(ctx, eventListKeyPrefix+event.Principal.String(), payload).Err(); err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	return event, nil
}

func (s *RedisEventStore) ListByPrincipal(ctx context.Context, principal id.PrincipalID) ([]Event, error) {
	raw, err := s.client.LRange(ctx, eventListKeyPrefix+principal.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, event)
	}
	// Pushes can interleave with seq assignment under concurrency; order by
	// the authoritative sequence before returning.
	sortEvents(out)
	return out, nil
}

func (s *RedisEventStore) Sum(ctx context.Context, principal id.PrincipalID) (int64, error) {
	events, err := s.ListByPrincipal(ctx, principal)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, event := range events {
		sum += event.Delta
	}
	return sum, nil
}

func sortEvents(events []Event) {
	// Insertion sort: lists are near-sorted, inversions only under heavy
	// concurrent append.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j-1].Seq > events[j].Seq; j-- {
			events[j-1], events[j] = events[j], events[j-1]
		}
	}
}

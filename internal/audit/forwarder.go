package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"sovid/internal/platform/config"
)

const (
	forwardInterval = 5 * time.Second
	forwardBatch    = 100
)

// Forwarder ships unpublished audit events from the outbox to Kafka. Delivery
// is at-least-once; consumers dedupe on event ID. This is the replay path for
// events like adjust_replay_due: a downstream worker consumes the topic and
// re-applies the failed reputation adjustments.
type Forwarder struct {
	store  OutboxStore
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewForwarder connects to the brokers and ensures the audit topic exists.
// Returns nil if no brokers are configured.
func NewForwarder(cfg config.KafkaConfig, store OutboxStore, logger *slog.Logger) (*Forwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, cfg.AuditTopic); err != nil {
		// An existing topic is fine; anything else is a startup failure.
		if !errors.Is(err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
	}

	return &Forwarder{store: store, client: client, topic: cfg.AuditTopic, logger: logger}, nil
}

// Run forwards outbox batches until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(forwardInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.client.Close()
			return nil
		case <-ticker.C:
			if err := f.forwardOnce(ctx); err != nil {
				f.logger.ErrorContext(ctx, "audit forward failed", "error", err)
			}
		}
	}
}

func (f *Forwarder) forwardOnce(ctx context.Context) error {
	batch, err := f.store.NextBatch(ctx, forwardBatch)
	if err != nil {
		return fmt.Errorf("load outbox batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(batch))
	published := make([]string, 0, len(batch))
	for _, event := range batch {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal audit event %s: %w", event.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: f.topic,
			Key:   []byte(event.Principal.String()),
			Value: payload,
		})
		published = append(published, event.ID)
	}

	if err := f.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	return f.store.MarkPublished(ctx, published)
}

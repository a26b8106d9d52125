// Package outbox stages domain events in the business transaction and relays
// them to a transport with at-least-once delivery.
//
// A crash between Deliver and Ack delivers the event again on the next claim;
// consumers deduplicate on the event id.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/metrics"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

const DefaultBatchSize = 25

var (
	ErrEventTypeRequired = errors.New("outbox: event type is required")
	ErrPublisherRequired = errors.New("outbox: publisher is required")
)

// Stage records an event inside the caller's open transaction, so the event
// exists if and only if that transaction commits.
func Stage(ctx context.Context, repo interfaces.OutboxRepository, eventType string, payload any) (models.OutboxEvent, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return models.OutboxEvent{}, ErrEventTypeRequired
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	event, err := repo.InsertOutboxEvent(ctx, models.OutboxEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Payload:   body,
	})
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("stage %s: %w", eventType, err)
	}
	return event, nil
}

// PublisherFunc adapts a plain function to interfaces.EventPublisher.
type PublisherFunc func(ctx context.Context, event models.OutboxEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event models.OutboxEvent) error {
	return f(ctx, event)
}

// BatchResult captures one relay cycle.
type BatchResult struct {
	Claimed   int
	Delivered int
	Failed    int
}

type Relay struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	batchSize int
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(store interfaces.LedgerStore, publisher interfaces.EventPublisher, opts ...Option) (*Relay, error) {
	if publisher == nil {
		return nil, ErrPublisherRequired
	}
	r := &Relay{
		store:     store,
		publisher: publisher,
		logger:    zap.NewNop(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Claim locks up to limit of the oldest unsent events for the rest of the
// caller's transaction. Rows held by another relay are skipped, not waited on.
func (r *Relay) Claim(ctx context.Context, repo interfaces.OutboxRepository, limit int) ([]models.OutboxEvent, error) {
	events, err := repo.ClaimUnsentOutboxEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	r.metrics.Claimed(len(events))
	return events, nil
}

func (r *Relay) Deliver(ctx context.Context, event models.OutboxEvent) error {
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.metrics.DeliveryFailed()
		return fmt.Errorf("deliver event %s: %w", event.ID, err)
	}
	return nil
}

func (r *Relay) Ack(ctx context.Context, repo interfaces.OutboxRepository, eventID string) error {
	if err := repo.MarkOutboxEventSent(ctx, eventID); err != nil {
		return fmt.Errorf("ack event %s: %w", eventID, err)
	}
	r.metrics.Delivered()
	return nil
}

// RelayBatch claims one batch, delivers it in order and acks each success in
// the same transaction. The first delivery failure ends the batch: later
// events stay unsent so they are not delivered ahead of the failed one, and the
// acks already made are committed.
func (r *Relay) RelayBatch(ctx context.Context) (BatchResult, error) {
	start := time.Now()
	var result BatchResult

	err := r.store.WithinTx(ctx, func(ctx context.Context, tx interfaces.LedgerTx) error {
		result = BatchResult{}

		events, err := r.Claim(ctx, tx, r.batchSize)
		if err != nil {
			return err
		}
		result.Claimed = len(events)

		for _, event := range events {
			if err := r.Deliver(ctx, event); err != nil {
				result.Failed++
				r.logger.Error("outbox delivery failed, leaving rest of batch unsent",
					zap.String("event_id", event.ID),
					zap.String("event_type", event.EventType),
					zap.Int("remaining", len(events)-result.Delivered-1),
					zap.Error(err),
				)
				return nil
			}
			if err := r.Ack(ctx, tx, event.ID); err != nil {
				return err
			}
			result.Delivered++
		}
		return nil
	})
	r.metrics.ObserveBatch(time.Since(start))

	if err != nil {
		return result, fmt.Errorf("relay batch: %w", err)
	}
	if result.Claimed > 0 {
		r.logger.Info("outbox batch relayed",
			zap.Int("claimed", result.Claimed),
			zap.Int("delivered", result.Delivered),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

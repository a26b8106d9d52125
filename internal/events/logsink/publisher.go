// Package logsink is the transport used when no message broker is configured.
// It writes each event to the structured log and always succeeds.
package logsink

import (
	"context"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

type Publisher struct {
	logger *zap.Logger
}

func NewPublisher(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(_ context.Context, event models.OutboxEvent) error {
	p.logger.Info("published_event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.ByteString("payload", event.Payload),
		zap.Time("created_at", event.CreatedAt),
	)
	return nil
}

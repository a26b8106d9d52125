package interfaces

import (
	"context"

	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

// EventPublisher hands an outbox event to the downstream transport. It may fail
// transiently; the relay leaves the event unsent in that case.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OutboxEvent) error
}

package outbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 2 * time.Second

type batchRelayer interface {
	RelayBatch(ctx context.Context) (BatchResult, error)
}

// Worker drives a Relay on a fixed interval. It runs on the caller's goroutine
// and has no internal concurrency; run more processes to scale out.
type Worker struct {
	relay    batchRelayer
	interval time.Duration
	logger   *zap.Logger
}

func NewWorker(relay *Relay, interval time.Duration, logger *zap.Logger) *Worker {
	return newWorker(relay, interval, logger)
}

func newWorker(relay batchRelayer, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{relay: relay, interval: interval, logger: logger}
}

// Run relays one batch per cycle until ctx is cancelled. The cancellation
// checkpoint sits between the batch and the sleep, so a batch in flight always
// finishes (commits or rolls back) before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("outbox worker started", zap.Duration("interval", w.interval))
	defer w.logger.Info("outbox worker stopped")

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		if _, err := w.relay.RelayBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("outbox batch failed", zap.Error(err))
		}

		if ctx.Err() != nil {
			return nil
		}

		timer.Reset(w.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Command relay drains the transactional outbox to Kafka, or to the log when
// no brokers are configured. Run several copies to scale out; they partition
// the backlog through skip-locked claims.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheikh-saqib/payments-ledger/internal/api"
	"github.com/sheikh-saqib/payments-ledger/internal/config"
	"github.com/sheikh-saqib/payments-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/payments-ledger/internal/events/logsink"
	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/logger"
	"github.com/sheikh-saqib/payments-ledger/internal/metrics"
	"github.com/sheikh-saqib/payments-ledger/internal/outbox"
	"github.com/sheikh-saqib/payments-ledger/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.StoreDriver == config.DriverMemory {
		return fmt.Errorf("the relay needs a shared store, %q cannot be used", config.DriverMemory)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relay, err := outbox.NewRelay(store, publisher,
		outbox.WithBatchSize(cfg.WorkerBatchSize),
		outbox.WithLogger(log.Named("outbox")),
		outbox.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		return err
	}
	worker := outbox.NewWorker(relay, cfg.WorkerPollInterval, log.Named("worker"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		return api.Serve(ctx, cfg.MetricsAddr, metrics.Handler(reg), log)
	})
	return g.Wait()
}

func newPublisher(cfg config.Config, log *zap.Logger) (interfaces.EventPublisher, func() error, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Info("no kafka brokers configured, publishing to the log")
		return logsink.NewPublisher(log.Named("events")), func() error { return nil }, nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{Brokers: brokers, Topic: cfg.KafkaTopic}, log.Named("kafka"))
	if err != nil {
		return nil, nil, err
	}
	log.Info("publishing to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	return pub, pub.Close, nil
}

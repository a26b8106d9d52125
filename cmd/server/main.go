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

	"github.com/sheikh-saqib/payments-ledger/internal/api"
	"github.com/sheikh-saqib/payments-ledger/internal/config"
	"github.com/sheikh-saqib/payments-ledger/internal/ledger"
	"github.com/sheikh-saqib/payments-ledger/internal/logger"
	"github.com/sheikh-saqib/payments-ledger/internal/metrics"
	"github.com/sheikh-saqib/payments-ledger/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ledgerService := ledger.NewLedger(store,
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithMetrics(metrics.New(reg)),
	)
	handler := api.NewHandler(ledgerService, log.Named("http"))

	log.Info("starting ledger server", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
	return api.Serve(ctx, cfg.HTTPAddr, handler.Routes(metrics.Handler(reg)), log)
}

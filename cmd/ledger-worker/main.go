package main

import (
	"context"
	"errors"
	"os"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/cli"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/trace"
	"moneymanager/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	auditWorker := worker.NewAuditWorker(services.NewAuditor(repo), worker.AuditWorkerConfig{
		SweepInterval: cfg.AuditInterval,
		BatchSize:     cfg.AuditBatchSize,
	})

	// AMQP is optional: without it the worker only runs periodic sweeps
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, running periodic sweeps only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := auditWorker.Stop(shutdownCtx); err != nil {
			logger.Warn("Audit worker did not stop cleanly", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Warn("Failed to close SQLite repository", "error", err)
		}
	})
	ctx = log.WithLogger(ctx, logger)

	if err := auditWorker.Start(ctx); err != nil {
		logger.Error("Failed to start audit worker", "error", err)
		os.Exit(1)
	}

	tracer := trace.New(log.ComponentWorker)
	if amqpClient != nil {
		handle := func(ctx context.Context, event *amqp.LedgerEvent) error {
			return tracer.Run(ctx, string(event.Type), func(ctx context.Context) error {
				return auditWorker.HandleEvent(ctx, event)
			})
		}
		go func() {
			err := amqpClient.ConsumeLedgerEvents(ctx, handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger event consumption stopped", "error", err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	metrics := tracer.Metrics()
	logger.Info("Worker shutdown complete",
		"mismatches_observed", auditWorker.Mismatches(),
		"events_handled", metrics.TotalOperations,
		"events_failed", metrics.Failures,
		"last_event_duration", metrics.LastDuration)
}

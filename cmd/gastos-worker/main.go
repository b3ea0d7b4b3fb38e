package main

import (
	"os"

	"gastos/internal/amqp"
	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/log"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)

	logger.Info("Starting gastos-worker",
		log.FieldBackend, cfg.DataBackend,
		"reconcile_interval", cfg.ReconcileInterval.String())

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker only reads the primary store; it must not publish.
	bcfg.AMQPURL = ""
	if bcfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend is private to this process; reconcile will mirror the seed data only")
	}

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Cleanup()

	mirror, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if err := mirror.EnsureHeader(ctx); err != nil {
		logger.Error("Failed to prepare mirror sheet", log.FieldError, err, "sheet", cfg.GoogleSheetName)
		os.Exit(1)
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	w := worker.NewSyncWorker(mirror, res.Raw)
	if err := w.Run(ctx, consumer, cfg.ReconcileInterval); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		cancel()
		return
	}
	logger.Info("Worker shutdown complete")
}

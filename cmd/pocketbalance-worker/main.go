package main

import (
	"context"
	"errors"
	"os"
	"time"

	"pocketbalance/internal/amqp"
	"pocketbalance/internal/backend"
	"pocketbalance/internal/cli"
	"pocketbalance/internal/config"
	"pocketbalance/internal/core"
	"pocketbalance/internal/ledger"
	"pocketbalance/internal/log"
	gsheet "pocketbalance/internal/sheets/google"
	"pocketbalance/internal/worker"
)

const reconcileInterval = 15 * time.Minute

func main() {
	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting pocketbalance-worker")

	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		// not fatal: appends still work without a header
		logger.Error("Failed to write mirror header", log.FieldError, err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(sheetsClient, sheetsClient, logger)

	// Shared backends let the worker catch up on events it missed.
	if cfg.DataBackend != config.BackendMemory {
		logger.Info("Performing startup reconcile...")
		if err := reconcile(ctx, cfg, logger, mirrorWorker); err != nil {
			logger.Error("Failed startup reconcile", log.FieldError, err)
		}
		go func() {
			ticker := time.NewTicker(reconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := reconcile(ctx, cfg, logger, mirrorWorker); err != nil {
						logger.Error("Periodic reconcile failed", log.FieldError, err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping reconcile - memory backend is not shared")
	}

	err = amqpClient.Consume(ctx, mirrorWorker.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// reconcile reads the persisted ledger and mirrors what is missing.
func reconcile(ctx context.Context, cfg *config.Config, logger *log.Logger, w *worker.MirrorWorker) error {
	return w.Reconcile(ctx, func(ctx context.Context) ([]core.Transaction, error) {
		backendCfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, err
		}
		res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
		if err != nil {
			return nil, err
		}
		defer res.Close()

		store := ledger.New(res.Store, ledger.WithKey(cfg.StorageKey), ledger.WithLogger(logger))
		store.Load(ctx)
		return store.List(), nil
	})
}

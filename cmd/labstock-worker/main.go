// Command labstock-worker consumes purchase import events, mirrors records
// to the Google Sheets spreadsheet and keeps report snapshots fresh.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"

	"labstock/internal/amqp"
	"labstock/internal/config"
	applog "labstock/internal/log"
	"labstock/internal/sheets"
	"labstock/internal/sheets/google"
	"labstock/internal/storage"
	"labstock/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := applog.New(applog.Config{
		Level:     parseLevel(cfg.LogLevel),
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Error("worker exited with error", applog.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	var appender sheets.RowAppender
	if cfg.SheetsEnabled() {
		client, err := google.NewClient(ctx, google.Config{
			CredentialsPath: cfg.GoogleCredentialsPath,
			SpreadsheetID:   cfg.SpreadsheetID,
			SheetName:       cfg.SheetName,
		}, logger)
		if err != nil {
			return err
		}
		appender = client
	} else {
		logger.Info("sheets mirror disabled, no spreadsheet configured")
	}

	w := worker.NewSnapshotWorker(repo, appender, cfg.SyncBatchSize, logger)

	if err := w.StartupSyncCheck(ctx); err != nil {
		logger.Warn("startup sync incomplete", applog.FieldError, err)
	}
	if err := w.RebuildSnapshots(ctx); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)

	if cfg.MessagingEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		group.Go(func() error {
			return client.ConsumePurchaseImports(ctx, w.HandleImportMessage)
		})
	} else {
		logger.Info("event consumer disabled, no AMQP configured")
	}

	c := cron.New()
	if err := c.AddFunc(cfg.SnapshotSchedule, func() {
		if err := w.RebuildSnapshots(context.Background()); err != nil {
			logger.Error("scheduled snapshot rebuild failed", applog.FieldError, err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	group.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	logger.Info("worker started", "schedule", cfg.SnapshotSchedule)
	return group.Wait()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

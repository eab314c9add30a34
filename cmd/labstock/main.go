// Command labstock runs the purchase reporting API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"labstock/internal/amqp"
	"labstock/internal/config"
	apphttp "labstock/internal/http"
	applog "labstock/internal/log"
	"labstock/internal/report"
	"labstock/internal/services"
	"labstock/internal/storage"
)

func main() {
	// Optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := applog.New(applog.Config{
		Level:     parseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger) error {
	repo, err := storage.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	var publisher services.EventPublisher
	if cfg.MessagingEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// The API works without the event pipeline; the worker's
			// startup sync covers the gap.
			logger.Warn("rabbitmq unavailable, events disabled", applog.FieldError, err)
		} else {
			publisher = client
		}
	}

	purchaseService := services.NewPurchaseService(repo, publisher, logger)
	defer purchaseService.Close()

	reportService := report.NewService(repo, repo)

	serverCfg := apphttp.DefaultConfig()
	serverCfg.Addr = cfg.Addr()
	serverCfg.ImportMaxBytes = cfg.ImportMaxBytes
	serverCfg.RateLimitPerMinute = cfg.RateLimitPerMinute

	server := apphttp.NewServer(serverCfg, reportService, purchaseService, repo, repo, repo, repo, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
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

// Command notifier runs the notification dispatcher as a standalone daemon,
// for deployments where the API runs with RUN_DISPATCHER=false.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	appconfig "github.com/turnoslabs/turnosbot/internal/config"
	"github.com/turnoslabs/turnosbot/internal/messaging"
	"github.com/turnoslabs/turnosbot/internal/messaging/waclient"
	"github.com/turnoslabs/turnosbot/internal/notifications"
	"github.com/turnoslabs/turnosbot/internal/observability/metrics"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel).Named("notifier")
	logger.Info("starting notification dispatcher",
		"interval", cfg.DispatchInterval.String(),
		"batch_size", cfg.DispatchBatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	var sender messaging.Sender
	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		client, err := waclient.New(waclient.Config{
			AccessToken:   cfg.WhatsAppToken,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			Timeout:       cfg.WhatsAppTimeout,
			Logger:        logger.Logger,
		})
		if err != nil {
			logger.Error("failed to create whatsapp client", "error", err)
			os.Exit(1)
		}
		sender = client
	} else {
		logger.Warn("whatsapp credentials missing, using noop sender")
		sender = messaging.NoopSender{Logger: logger}
	}

	dispatcher := notifications.NewDispatcher(notifications.NewQueue(pool), sender, logger).
		WithInterval(cfg.DispatchInterval).
		WithBatchSize(cfg.DispatchBatchSize).
		WithRetention(cfg.SentRetention).
		WithMetrics(metrics.NewBotMetrics(nil))

	dispatcher.Run(ctx)
	logger.Info("dispatcher stopped")
}

package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/turnoslabs/turnosbot/internal/api/router"
	"github.com/turnoslabs/turnosbot/internal/appointments"
	appconfig "github.com/turnoslabs/turnosbot/internal/config"
	"github.com/turnoslabs/turnosbot/internal/conversation"
	"github.com/turnoslabs/turnosbot/internal/http/handlers"
	"github.com/turnoslabs/turnosbot/internal/messaging"
	"github.com/turnoslabs/turnosbot/internal/messaging/waclient"
	"github.com/turnoslabs/turnosbot/internal/notifications"
	"github.com/turnoslabs/turnosbot/internal/observability/metrics"
	"github.com/turnoslabs/turnosbot/internal/professionals"
	"github.com/turnoslabs/turnosbot/internal/schedule"
	"github.com/turnoslabs/turnosbot/internal/stats"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting turnosbot API server",
		"env", cfg.Env,
		"port", cfg.Port,
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

	// Stats read through database/sql so the dashboard can point at a
	// replica without touching the pgx pool settings.
	statsDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open stats connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = statsDB.Close() }()

	botMetrics := metrics.NewBotMetrics(nil)

	// Outbound messaging: real WhatsApp client when credentials are set,
	// a logging noop otherwise so local runs don't need Meta access.
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

	queue := notifications.NewQueue(pool)
	scheduleStore := schedule.NewStore(pool, cfg.AutoBlockMonths)
	if cfg.ScheduleConfigPath != "" {
		seedSchedule(ctx, scheduleStore, cfg.ScheduleConfigPath, logger)
	}
	prosRepo := professionals.NewRepository(pool)
	apptsRepo := appointments.NewRepository(pool)

	svc := appointments.NewService(apptsRepo, prosRepo, scheduleStore, queue, logger).
		WithAdminPhone(cfg.AdminPhone)

	// Conversation sessions: Redis when configured, otherwise in-process.
	var sessions conversation.SessionStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to ping redis", "error", err)
			os.Exit(1)
		}
		sessions = conversation.NewRedisStore(rdb).WithTTL(cfg.SessionTimeout)
	} else {
		logger.Warn("REDIS_ADDR not set, sessions are in-process only")
		sessions = conversation.NewMemoryStore().WithTTL(cfg.SessionTimeout)
	}

	engine := conversation.NewEngine(sessions, svc, scheduleStore, logger).
		WithHorizonDays(cfg.BookingHorizonDays)

	webhookHandler := handlers.NewWebhookHandler(cfg.WhatsAppVerifyToken, engine, sender, logger).
		WithMetrics(botMetrics)

	r := router.New(router.Config{
		Logger:               logger,
		Webhook:              webhookHandler,
		Appointments:         handlers.NewAdminAppointmentsHandler(svc, logger),
		Schedule:             handlers.NewAdminScheduleHandler(scheduleStore, svc, logger),
		Professionals:        handlers.NewAdminProfessionalsHandler(prosRepo, logger),
		Notifications:        handlers.NewAdminNotificationsHandler(queue, logger),
		Stats:                handlers.NewAdminStatsHandler(stats.NewReader(statsDB), logger),
		AdminJWTSecret:       cfg.AdminJWTSecret,
		AllowedOrigins:       cfg.AllowedOrigins,
		WebhookRatePerSecond: cfg.WebhookRatePerSecond,
		WebhookBurst:         cfg.WebhookBurst,
	})

	// Small deployments run the dispatcher in-process; larger ones run the
	// notifier binary separately and set RUN_DISPATCHER=false here.
	if cfg.RunDispatcher {
		dispatcher := notifications.NewDispatcher(queue, sender, logger).
			WithInterval(cfg.DispatchInterval).
			WithBatchSize(cfg.DispatchBatchSize).
			WithRetention(cfg.SentRetention).
			WithMetrics(botMetrics)
		go dispatcher.Run(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// seedSchedule imports a legacy config file on first boot. A document already
// saved through the admin panel always wins.
func seedSchedule(ctx context.Context, store *schedule.Store, path string, logger *logging.Logger) {
	has, err := store.HasDocument(ctx)
	if err != nil {
		logger.Error("failed to check schedule config", "error", err)
		return
	}
	if has {
		return
	}
	doc, err := schedule.LoadFile(path)
	if err != nil {
		logger.Error("failed to load schedule seed file", "error", err, "path", path)
		return
	}
	if err := store.SaveDocument(ctx, doc); err != nil {
		logger.Error("failed to seed schedule config", "error", err)
		return
	}
	logger.Info("schedule config seeded from file", "path", path)
}

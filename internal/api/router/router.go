// Package router assembles the HTTP surface: the public WhatsApp webhook and
// health endpoints, and the JWT-protected admin API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turnoslabs/turnosbot/internal/http/handlers"
	"github.com/turnoslabs/turnosbot/internal/http/middleware"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

// Config collects the handlers and settings the router wires together. Nil
// handlers leave their routes unmounted, so a deployment can run the webhook
// without the admin API or vice versa.
type Config struct {
	Logger *logging.Logger

	Webhook       *handlers.WebhookHandler
	Appointments  *handlers.AdminAppointmentsHandler
	Schedule      *handlers.AdminScheduleHandler
	Professionals *handlers.AdminProfessionalsHandler
	Notifications *handlers.AdminNotificationsHandler
	Stats         *handlers.AdminStatsHandler

	AdminJWTSecret string
	AllowedOrigins []string

	// WebhookRatePerSecond and WebhookBurst bound inbound webhook traffic
	// per source IP. Zero disables rate limiting.
	WebhookRatePerSecond float64
	WebhookBurst         int
}

// New builds the chi router with the standard middleware stack.
func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if cfg.Webhook != nil {
		r.Group(func(r chi.Router) {
			if cfg.WebhookRatePerSecond > 0 {
				r.Use(middleware.RateLimit(cfg.WebhookRatePerSecond, cfg.WebhookBurst))
			}
			r.Get("/webhook", cfg.Webhook.Verify)
			r.Post("/webhook", cfg.Webhook.Receive)
		})
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminJWT(cfg.AdminJWTSecret))

		if cfg.Appointments != nil {
			r.Get("/appointments", cfg.Appointments.List)
			r.Delete("/appointments/{id}", cfg.Appointments.Delete)
			r.Get("/week", cfg.Appointments.Week)
			r.Get("/availability", cfg.Appointments.Availability)
		}
		if cfg.Schedule != nil {
			r.Get("/schedule", cfg.Schedule.Get)
			r.Put("/schedule/{day}", cfg.Schedule.UpdateDay)
			r.Get("/blocked-dates", cfg.Schedule.ListBlocked)
			r.Post("/blocked-dates", cfg.Schedule.Block)
			r.Delete("/blocked-dates/{date}", cfg.Schedule.Unblock)
		}
		if cfg.Professionals != nil {
			r.Get("/professionals", cfg.Professionals.List)
			r.Post("/professionals", cfg.Professionals.Create)
			r.Put("/professionals/{id}", cfg.Professionals.Update)
			r.Delete("/professionals/{id}", cfg.Professionals.Delete)
		}
		if cfg.Notifications != nil {
			r.Get("/notifications", cfg.Notifications.List)
		}
		if cfg.Stats != nil {
			r.Get("/stats", cfg.Stats.Get)
		}
	})

	return r
}

// Package router wires the admin HTTP surface onto chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicware/attend-platform/internal/api/handlers"
	httpmiddleware "github.com/clinicware/attend-platform/internal/http/middleware"
	"github.com/clinicware/attend-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Schedule   *handlers.ScheduleHandler
	Reminders  *handlers.RemindersHandler
	Attendance *handlers.AttendanceHandler
	History    *handlers.HistoryHandler
	Settings   *handlers.SettingsHandler

	// Admin authentication: shared-secret header and/or HMAC JWT.
	AdminAPIKey    string
	AdminJWTSecret string

	MetricsHandler http.Handler
	HealthCheck    http.HandlerFunc
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		if cfg.HealthCheck != nil {
			public.Get("/health", cfg.HealthCheck)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin routes, all behind authentication.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminAuth(cfg.AdminAPIKey, cfg.AdminJWTSecret))

		if cfg.Schedule != nil {
			admin.Post("/schedule/sync", cfg.Schedule.Sync)
		}
		if cfg.Reminders != nil {
			admin.Post("/reminders/preview", cfg.Reminders.Preview)
			admin.Post("/reminders/dispatch", cfg.Reminders.Dispatch)
		}
		if cfg.Attendance != nil {
			admin.Post("/attendance/import", cfg.Attendance.Import)
			admin.Post("/attendance/followups", cfg.Attendance.Followups)
		}
		if cfg.History != nil {
			admin.Get("/history", cfg.History.List)
		}
		if cfg.Settings != nil {
			admin.Get("/settings", cfg.Settings.Get)
			admin.Put("/settings", cfg.Settings.Put)
		}
	})

	return r
}

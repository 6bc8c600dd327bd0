package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicware/attend-platform/internal/api/handlers"
	"github.com/clinicware/attend-platform/internal/api/router"
	"github.com/clinicware/attend-platform/internal/appointments"
	"github.com/clinicware/attend-platform/internal/attendance"
	appconfig "github.com/clinicware/attend-platform/internal/config"
	"github.com/clinicware/attend-platform/internal/directory"
	"github.com/clinicware/attend-platform/internal/dispatch"
	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/notify"
	"github.com/clinicware/attend-platform/internal/observability/metrics"
	"github.com/clinicware/attend-platform/internal/push"
	"github.com/clinicware/attend-platform/internal/roster"
	"github.com/clinicware/attend-platform/internal/syncer"
	"github.com/clinicware/attend-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting attend-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

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
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	location, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		location = time.Local
	}

	// Stores
	appointmentStore := appointments.NewStore(pool)
	directoryStore := directory.NewStore(pool).WithChunkSize(cfg.PhoneChunkSize)
	settingsStore := roster.NewSettingsStore(pool).WithDefaultTemplate(cfg.DefaultTemplate)
	historyStore := history.NewStore(pool)
	attendanceStore := attendance.NewStore(pool)

	// Delivery + caching
	pushClient := push.New(push.Config{
		BaseURL:     cfg.PushGatewayURL,
		AccessToken: cfg.PushGatewayToken,
		Timeout:     cfg.PushSendTimeout,
		Logger:      logger,
	})
	previewCache := dispatch.NewCache(redisClient, cfg.PreviewTTL)

	// Pipelines
	syncEngine := syncer.NewEngine(appointmentStore, historyStore, logger).
		WithChunkSize(cfg.PhoneChunkSize).
		WithMetrics(pipelineMetrics)
	previewBuilder := dispatch.NewBuilder(appointmentStore, directoryStore, settingsStore, previewCache, logger).
		WithLocation(location)
	dispatcher := dispatch.NewDispatcher(pushClient, previewCache, historyStore, logger).
		WithWorkers(cfg.DispatchWorkers).
		WithMetrics(pipelineMetrics)
	importer := attendance.NewImporter(attendanceStore, historyStore, logger).WithCountryCode(cfg.DefaultCountryCode)
	selector := attendance.NewSelector(attendanceStore, directoryStore, settingsStore, pushClient, historyStore, logger)

	// Operator run summaries go out by email when SendGrid is configured.
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, cfg.SummaryRecipient, cfg.ClinicName, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		Schedule:       handlers.NewScheduleHandler(syncEngine, settingsStore, notifier, location, logger).WithCountryCode(cfg.DefaultCountryCode),
		Reminders:      handlers.NewRemindersHandler(previewBuilder, dispatcher, notifier, logger),
		Attendance:     handlers.NewAttendanceHandler(importer, selector, logger),
		History:        handlers.NewHistoryHandler(historyStore, logger),
		Settings:       handlers.NewSettingsHandler(settingsStore, logger),
		AdminAPIKey:    cfg.AdminAPIKey,
		AdminJWTSecret: cfg.AdminJWTSecret,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

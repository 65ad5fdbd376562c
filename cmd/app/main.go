package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/wb-simple-server-go/internal/bootstrap"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/auth"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/subscription"
	"github.com/mo-amir99/wb-simple-server-go/internal/http/routes"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/config"
	"github.com/mo-amir99/wb-simple-server-go/pkg/database"
	"github.com/mo-amir99/wb-simple-server-go/pkg/jobs"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
	"github.com/mo-amir99/wb-simple-server-go/pkg/metrics"
	"github.com/mo-amir99/wb-simple-server-go/pkg/middleware"
	"github.com/mo-amir99/wb-simple-server-go/pkg/request"
	"github.com/mo-amir99/wb-simple-server-go/pkg/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := database.Close(db, appLogger); err != nil {
			appLogger.Error("database close failed", slog.String("error", err.Error()))
		}
	}()

	if err := bootstrap.ApplyDatabaseMigrations(db, cfg, appLogger); err != nil {
		appLogger.Error("migrations failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := bootstrap.EnsureAdmins(db, cfg.AdminTelegramIDs, appLogger); err != nil {
		appLogger.Error("ensure admins failed", slog.String("error", err.Error()))
	}

	cacheClient, err := cache.New(ctx, cache.Options{URL: cfg.Redis.URL, AllowFallback: cfg.Redis.AllowFallback}, appLogger)
	if err != nil {
		appLogger.Error("cache connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = cacheClient.Close() }()

	// The bot is optional: without it the server runs but sends no notifications.
	var notifier subscription.Notifier
	if bot, err := telegram.New(cfg.Telegram.BotToken, appLogger); err == nil {
		notifier = bot
		if cfg.Telegram.WebhookURL != "" {
			if err := bot.RegisterWebhook(cfg.Telegram.WebhookURL); err != nil {
				appLogger.Warn("telegram webhook registration failed", slog.String("error", err.Error()))
			}
		}
	} else {
		appLogger.Warn("telegram bot unavailable", slog.String("error", err.Error()))
	}

	revocations := auth.NewRevocationStore(db, cacheClient, appLogger)

	scheduler := jobs.NewScheduler(appLogger)
	scheduler.AddJob(subscription.NewExpirationJob(db, notifier, appLogger), time.Hour, true)
	scheduler.AddJob(auth.NewCleanupJob(revocations, appLogger), time.Hour, false)
	scheduler.Start()
	defer scheduler.Stop()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute)
	go rateLimiter.Cleanup(ctx.Done())
	go authLimiter.Cleanup(ctx.Done())

	router := gin.New()
	router.Use(middleware.Recovery(appLogger, !cfg.IsProduction()))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestLogger(appLogger))
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CacheControl())
	router.Use(middleware.RequestSizeLimit(10 * 1024 * 1024))
	router.Use(metrics.Middleware())
	router.Use(request.Handler(appLogger))
	router.Use(rateLimiter.Middleware())

	routes.Register(router, routes.Dependencies{
		Config:      cfg,
		DB:          db,
		Cache:       cacheClient,
		Logger:      appLogger,
		Revocations: revocations,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		appLogger.Info("server starting",
			slog.String("addr", cfg.ServerAddress()),
			slog.String("env", cfg.Env),
			slog.String("cache", cacheClient.Backend()),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server listen failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop() // a second signal kills the process
	appLogger.Info("shutdown signal received")

	forced := time.AfterFunc(shutdownTimeout+time.Second, func() {
		appLogger.Error("forced shutdown after timeout")
		os.Exit(1)
	})
	defer forced.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", slog.String("error", err.Error()))
	} else {
		appLogger.Info("server stopped gracefully")
	}
}

package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/auth"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/feedback"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/progress"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/subscription"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/template"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/video"
	"github.com/mo-amir99/wb-simple-server-go/internal/middleware"
	"github.com/mo-amir99/wb-simple-server-go/pkg/bunny"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/config"
	"github.com/mo-amir99/wb-simple-server-go/pkg/health"
	pkgmiddleware "github.com/mo-amir99/wb-simple-server-go/pkg/middleware"
)

// Dependencies are the process-wide values shared by every handler.
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	Cache       cache.Client
	Logger      *slog.Logger
	Revocations *auth.RevocationStore
	AuthLimiter *pkgmiddleware.RateLimiter
}

// Register wires all feature routes onto the engine.
func Register(engine *gin.Engine, deps Dependencies) {
	cfg, db, logger := deps.Config, deps.DB, deps.Logger

	// Health check endpoints (no /api prefix for container probes)
	healthHandler := health.NewHandler(db, deps.Cache, logger, cfg.Version)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/version", healthHandler.Version)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !cfg.IsProduction() {
		engine.GET("/debug/db-stats", healthHandler.DBStats)
	}

	api := engine.Group("/api")

	verifier := auth.NewVerifier(cfg.Telegram.BotToken, cfg.Telegram.InitDataMaxAge, cfg.Telegram.SkipVerification)
	authService := auth.NewService(db, verifier, deps.Revocations, auth.TokenConfig{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
	}, logger)

	guard := middleware.NewAuthMiddleware(authService, logger)
	acAuth := guard.RequireAuth()
	acAdmin := guard.RequireAdminAuth()
	acOptional := guard.Optional()

	authLimiter := deps.AuthLimiter
	if authLimiter == nil {
		authLimiter = pkgmiddleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute)
	}
	auth.RegisterRoutes(api, auth.NewHandler(authService, logger), acAuth, authLimiter.Middleware())

	user.RegisterRoutes(api, user.NewHandler(db, logger), acAdmin)

	module.RegisterRoutes(api, module.NewHandler(db, deps.Cache, logger), acOptional, acAdmin)
	lesson.RegisterRoutes(api, lesson.NewHandler(db, deps.Cache, logger), acOptional, acAdmin)
	progress.RegisterRoutes(api, progress.NewHandler(db, deps.Cache, logger), acAuth)

	signer := video.NewSigner(video.SignerConfig{
		Secret:          cfg.Video.TokenSecret,
		TTL:             cfg.Video.TokenTTL,
		PublicBaseURL:   cfg.PublicBaseURL,
		AllowedReferers: cfg.Video.AllowedReferers,
	}, logger)
	delivery := bunny.NewDeliverySigner(cfg.Video.DeliveryURL, cfg.Video.DeliverySecurityKey, cfg.Video.DeliveryTTL)
	if !delivery.Configured() {
		logger.Warn("video delivery signing not configured, streams redirect to lesson video urls")
	}
	video.RegisterRoutes(api, video.NewHandler(db, deps.Cache, signer, delivery, logger), acAuth)

	subscription.RegisterRoutes(api, subscription.NewHandler(db, logger), acAuth, acAdmin)
	feedback.RegisterRoutes(api, feedback.NewHandler(db, logger), acAuth, acAdmin)
	template.RegisterRoutes(api, template.NewHandler(db, deps.Cache, logger), acAuth, acAdmin)
}

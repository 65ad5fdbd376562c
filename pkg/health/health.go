package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
)

// Build information, typically set at build time with -ldflags.
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Handler handles health check endpoints.
type Handler struct {
	db      *gorm.DB
	cache   cache.Client
	logger  *slog.Logger
	version string
	now     func() time.Time
}

// NewHandler creates a new health check handler.
func NewHandler(db *gorm.DB, cacheClient cache.Client, logger *slog.Logger, version string) *Handler {
	return &Handler{
		db:      db,
		cache:   cacheClient,
		logger:  logger,
		version: version,
		now:     time.Now,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Database  string    `json:"database"`
}

// Health reports process, database, and Redis status. Redis running on the
// in-memory fallback is reported as DOWN without failing the probe.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Timestamp: h.now().UTC(),
		Redis:     h.checkRedis(ctx),
		Database:  h.checkDatabase(ctx),
	}

	status := http.StatusOK
	if resp.Database != StatusUp {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

// Ready is a readiness probe that checks if the service can serve traffic.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.checkDatabase(ctx) != StatusUp {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Version returns version information about the service.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    h.version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
	})
}

func (h *Handler) checkRedis(ctx context.Context) string {
	if h.cache == nil || h.cache.Backend() != cache.BackendRedis {
		return StatusDown
	}
	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn("health check: redis ping failed", slog.String("error", err.Error()))
		return StatusDown
	}
	return StatusUp
}

func (h *Handler) checkDatabase(ctx context.Context) string {
	sqlDB, err := h.db.DB()
	if err != nil {
		h.logger.Error("health check: failed to get database instance", slog.String("error", err.Error()))
		return StatusDown
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		h.logger.Error("health check: database ping failed", slog.String("error", err.Error()))
		return StatusDown
	}

	return StatusUp
}

// DBStats returns database connection pool statistics.
func (h *Handler) DBStats(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get database instance",
		})
		return
	}

	stats := sqlDB.Stats()
	c.JSON(http.StatusOK, gin.H{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	})
}

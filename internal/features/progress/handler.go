package progress

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/request"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

// Handler processes progress HTTP requests.
type Handler struct {
	db     *gorm.DB
	cache  cache.Client
	logger *slog.Logger
}

// NewHandler constructs a progress handler instance.
func NewHandler(db *gorm.DB, cacheClient cache.Client, logger *slog.Logger) *Handler {
	return &Handler{db: db, cache: cacheClient, logger: logger}
}

// Summary returns the caller's progress across all modules.
func (h *Handler) Summary(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	summary, err := GetSummary(h.db.WithContext(c.Request.Context()), current.ID, current.IsAdmin())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to load progress", err)
		return
	}

	response.Success(c, http.StatusOK, summary, "", nil)
}

// GetLesson returns the caller's status for one lesson.
func (h *Handler) GetLesson(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	lessonID, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson id", err)
		return
	}

	ctx := c.Request.Context()
	key := cache.LessonProgressKey(current.ID, lessonID)
	if !current.IsAdmin() {
		var cached LessonStatus
		if cache.Fetch(ctx, h.cache, h.logger, "progress", key, &cached) {
			response.Success(c, http.StatusOK, cached, "", nil)
			return
		}
	}

	status, err := GetLessonStatus(h.db.WithContext(ctx), current.ID, lessonID, current.IsAdmin())
	if err != nil {
		h.respondError(c, err, "failed to load lesson progress")
		return
	}

	if !current.IsAdmin() {
		cache.Store(ctx, h.cache, h.logger, key, status, cache.ProgressTTL)
	}

	response.Success(c, http.StatusOK, status, "", nil)
}

// UpdateLesson marks a lesson completed or not completed.
func (h *Handler) UpdateLesson(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	lessonID, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson id", err)
		return
	}

	var req struct {
		Completed *bool `json:"completed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "completed must be a boolean", err)
		return
	}

	ctx := c.Request.Context()
	lessonStatus, moduleStatus, err := SetLessonCompleted(h.db.WithContext(ctx), current.ID, lessonID, *req.Completed, current.IsAdmin(), time.Now())
	if err != nil {
		h.respondError(c, err, "failed to update lesson progress")
		return
	}

	InvalidateUser(ctx, h.cache, h.logger, current.ID, lessonID, lessonStatus.ModuleID)

	response.Success(c, http.StatusOK, gin.H{
		"lesson": lessonStatus,
		"module": moduleStatus,
	}, "Progress updated.", nil)
}

// GetModule returns the caller's progress through a module.
func (h *Handler) GetModule(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	moduleID, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	ctx := c.Request.Context()
	key := cache.ModuleProgressKey(current.ID, moduleID)
	if !current.IsAdmin() {
		var cached ModuleStatus
		if cache.Fetch(ctx, h.cache, h.logger, "progress", key, &cached) {
			response.Success(c, http.StatusOK, cached, "", nil)
			return
		}
	}

	status, err := GetModuleStatus(h.db.WithContext(ctx), current.ID, moduleID, current.IsAdmin())
	if err != nil {
		h.respondError(c, err, "failed to load module progress")
		return
	}

	if !current.IsAdmin() {
		cache.Store(ctx, h.cache, h.logger, key, status, cache.ProgressTTL)
	}

	response.Success(c, http.StatusOK, status, "", nil)
}

// InvalidateUser drops the cached progress views touched by a lesson write.
func InvalidateUser(ctx context.Context, client cache.Client, logger *slog.Logger, userID, lessonID, moduleID uuid.UUID) {
	cache.Invalidate(ctx, client, logger,
		cache.LessonProgressKey(userID, lessonID),
		cache.ModuleProgressKey(userID, moduleID),
	)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrLessonNotFound), errors.Is(err, ErrModuleNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	default:
		request.Abort(c, fallback, err)
	}
}

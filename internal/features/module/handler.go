package module

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/request"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

// Handler processes module HTTP requests.
type Handler struct {
	db     *gorm.DB
	cache  cache.Client
	logger *slog.Logger
}

// NewHandler constructs a module handler instance.
func NewHandler(db *gorm.DB, cacheClient cache.Client, logger *slog.Logger) *Handler {
	return &Handler{db: db, cache: cacheClient, logger: logger}
}

// List returns modules, optionally with their lessons.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	isAdmin := callerIsAdmin(c)
	includeLessons := strings.EqualFold(c.Query("includeLessons"), "true")

	key := cache.KeyModulesList
	if includeLessons {
		key = cache.KeyModulesListWithLessons
	}

	if !isAdmin {
		var cached []Module
		if cache.Fetch(ctx, h.cache, h.logger, "modules", key, &cached) {
			response.Success(c, http.StatusOK, cached, "", nil)
			return
		}
	}

	modules, err := List(h.db.WithContext(ctx), ListFilters{
		PublishedOnly:  !isAdmin,
		IncludeLessons: includeLessons,
	})
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list modules", err)
		return
	}

	if !isAdmin {
		cache.Store(ctx, h.cache, h.logger, key, modules, cache.ContentTTL)
	}

	response.Success(c, http.StatusOK, modules, "", nil)
}

// GetByID returns one module with its lessons.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	ctx := c.Request.Context()
	isAdmin := callerIsAdmin(c)
	key := cache.ModuleKey(id)

	if !isAdmin {
		var cached Module
		if cache.Fetch(ctx, h.cache, h.logger, "module", key, &cached) {
			response.Success(c, http.StatusOK, cached, "", nil)
			return
		}
	}

	module, err := GetWithLessons(h.db.WithContext(ctx), id, isAdmin)
	if err != nil {
		h.respondError(c, err, "failed to load module")
		return
	}

	if !isAdmin {
		cache.Store(ctx, h.cache, h.logger, key, module, cache.ContentTTL)
	}

	response.Success(c, http.StatusOK, module, "", nil)
}

// Create adds a module.
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		Title       string  `json:"title" binding:"required"`
		Description *string `json:"description"`
		Order       *int    `json:"order"`
		IsPublished bool    `json:"isPublished"`
		ImageURL    *string `json:"imageUrl"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module payload", err)
		return
	}

	module, err := Create(h.db.WithContext(c.Request.Context()), CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
		IsPublished: req.IsPublished,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.respondError(c, err, "failed to create module")
		return
	}

	cache.Invalidate(c.Request.Context(), h.cache, h.logger, cache.ModuleWriteKeys(module.ID)...)
	response.Created(c, module, "Module created successfully.")
}

// Update modifies a module.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module payload", err)
		return
	}

	input := UpdateInput{}

	if value, ok := body["title"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "title must be a non-empty string", err)
			return
		}
		input.Title = &str
	}

	if value, ok := body["description"]; ok {
		input.DescriptionProvided = true
		str, err := request.ReadOptionalString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "description must be a string", err)
			return
		}
		input.Description = str
	}

	if value, ok := body["order"]; ok && value != nil {
		order, err := request.ReadInt(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "order must be an integer", err)
			return
		}
		input.Order = &order
	}

	if value, ok := body["isPublished"]; ok {
		published, err := request.ReadBool(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "isPublished must be a boolean", err)
			return
		}
		input.IsPublished = &published
	}

	if value, ok := body["imageUrl"]; ok {
		input.ImageURLProvided = true
		str, err := request.ReadOptionalString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "imageUrl must be a string", err)
			return
		}
		input.ImageURL = str
	}

	ctx := c.Request.Context()
	module, err := Update(h.db.WithContext(ctx), id, input)
	if err != nil {
		h.respondError(c, err, "failed to update module")
		return
	}

	// Lesson reads check module visibility, so their keys go too.
	lessonIDs, err := lessonIDsOf(h.db.WithContext(ctx), id)
	if err != nil {
		h.logger.Warn("failed to load module lessons for invalidation",
			slog.String("moduleId", id.String()), slog.String("error", err.Error()))
	}
	cache.Invalidate(ctx, h.cache, h.logger, moduleKeys(id, lessonIDs)...)
	response.Success(c, http.StatusOK, module, "Module updated successfully.", nil)
}

// Delete removes a module and everything under it.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	ctx := c.Request.Context()

	lessonIDs, err := lessonIDsOf(h.db.WithContext(ctx), id)
	if err != nil {
		h.respondError(c, err, "failed to load module lessons")
		return
	}

	if err := Delete(h.db.WithContext(ctx), id); err != nil {
		h.respondError(c, err, "failed to delete module")
		return
	}

	cache.Invalidate(ctx, h.cache, h.logger, moduleKeys(id, lessonIDs)...)

	h.logger.Info("module deleted", slog.String("moduleId", id.String()), slog.Int("lessons", len(lessonIDs)))
	response.Success(c, http.StatusOK, true, "Module deleted successfully.", nil)
}

func moduleKeys(moduleID uuid.UUID, lessonIDs []uuid.UUID) []string {
	keys := cache.ModuleWriteKeys(moduleID)
	for _, lessonID := range lessonIDs {
		keys = append(keys, cache.LessonKey(lessonID))
	}
	return keys
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrModuleNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrInvalidOrder):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ErrOrderTaken):
		response.ErrorWithLog(h.logger, c, http.StatusConflict, err.Error(), err)
	default:
		request.Abort(c, fallback, err)
	}
}

func callerIsAdmin(c *gin.Context) bool {
	usr, ok := user.FromContext(c)
	return ok && usr.IsAdmin()
}

package lesson

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/request"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

// Handler processes lesson HTTP requests.
type Handler struct {
	db     *gorm.DB
	cache  cache.Client
	logger *slog.Logger
}

// NewHandler constructs a lesson handler instance.
func NewHandler(db *gorm.DB, cacheClient cache.Client, logger *slog.Logger) *Handler {
	return &Handler{db: db, cache: cacheClient, logger: logger}
}

// ListByModule returns the lessons of a module.
func (h *Handler) ListByModule(c *gin.Context) {
	moduleID, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	ctx := c.Request.Context()
	isAdmin := callerIsAdmin(c)
	key := cache.LessonsByModuleKey(moduleID)

	if !isAdmin {
		var cached []Lesson
		if cache.Fetch(ctx, h.cache, h.logger, "lessons", key, &cached) {
			response.Success(c, http.StatusOK, cached, "", nil)
			return
		}
	}

	lessons, err := ListVisibleByModule(h.db.WithContext(ctx), moduleID, isAdmin)
	if err != nil {
		h.respondError(c, err, "failed to list lessons")
		return
	}

	if !isAdmin {
		cache.Store(ctx, h.cache, h.logger, key, lessons, cache.ContentTTL)
	}

	response.Success(c, http.StatusOK, lessons, "", nil)
}

// GetByID returns a single lesson.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson id", err)
		return
	}

	ctx := c.Request.Context()
	isAdmin := callerIsAdmin(c)
	key := cache.LessonKey(id)

	if !isAdmin {
		var cached Lesson
		if cache.Fetch(ctx, h.cache, h.logger, "lesson", key, &cached) {
			response.Success(c, http.StatusOK, cached, "", nil)
			return
		}
	}

	lesson, err := GetVisible(h.db.WithContext(ctx), id, isAdmin)
	if err != nil {
		h.respondError(c, err, "failed to load lesson")
		return
	}

	if !isAdmin {
		cache.Store(ctx, h.cache, h.logger, key, lesson, cache.ContentTTL)
	}

	response.Success(c, http.StatusOK, lesson, "", nil)
}

// Create adds a lesson to a module.
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		ModuleID    string  `json:"moduleId" binding:"required"`
		Title       string  `json:"title" binding:"required"`
		Description *string `json:"description"`
		Content     *string `json:"content"`
		Order       *int    `json:"order"`
		VideoID     *string `json:"videoId"`
		VideoURL    *string `json:"videoUrl"`
		Duration    int     `json:"duration"`
		IsPublished bool    `json:"isPublished"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson payload", err)
		return
	}

	moduleID, err := uuid.Parse(req.ModuleID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	lesson, err := Create(h.db.WithContext(c.Request.Context()), CreateInput{
		ModuleID:    moduleID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Order:       req.Order,
		VideoID:     req.VideoID,
		VideoURL:    req.VideoURL,
		Duration:    req.Duration,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		h.respondError(c, err, "failed to create lesson")
		return
	}

	cache.Invalidate(c.Request.Context(), h.cache, h.logger, cache.LessonWriteKeys(lesson.ID, lesson.ModuleID)...)
	response.Created(c, lesson, "Lesson created successfully.")
}

// Update modifies a lesson.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson id", err)
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson payload", err)
		return
	}

	input, err := readUpdateInput(body)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
		return
	}

	lesson, previousModule, err := Update(h.db.WithContext(c.Request.Context()), id, input)
	if err != nil {
		h.respondError(c, err, "failed to update lesson")
		return
	}

	keys := cache.LessonWriteKeys(lesson.ID, lesson.ModuleID)
	if previousModule != lesson.ModuleID {
		keys = append(keys, cache.ModuleKey(previousModule), cache.LessonsByModuleKey(previousModule))
	}
	cache.Invalidate(c.Request.Context(), h.cache, h.logger, keys...)

	response.Success(c, http.StatusOK, lesson, "Lesson updated successfully.", nil)
}

// Delete removes a lesson.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson id", err)
		return
	}

	lesson, err := Delete(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to delete lesson")
		return
	}

	cache.Invalidate(c.Request.Context(), h.cache, h.logger, cache.LessonWriteKeys(lesson.ID, lesson.ModuleID)...)
	response.Success(c, http.StatusOK, true, "Lesson deleted successfully.", nil)
}

func readUpdateInput(body map[string]interface{}) (UpdateInput, error) {
	input := UpdateInput{}

	if value, ok := body["moduleId"]; ok {
		moduleID, err := request.ReadUUID(value)
		if err != nil {
			return input, errors.New("moduleId must be a valid id")
		}
		input.ModuleID = &moduleID
	}

	if value, ok := body["title"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			return input, errors.New("title must be a non-empty string")
		}
		input.Title = &str
	}

	optionalStrings := []struct {
		key      string
		provided *bool
		target   **string
	}{
		{"description", &input.DescriptionProvided, &input.Description},
		{"content", &input.ContentProvided, &input.Content},
		{"videoId", &input.VideoIDProvided, &input.VideoID},
		{"videoUrl", &input.VideoURLProvided, &input.VideoURL},
	}
	for _, field := range optionalStrings {
		value, ok := body[field.key]
		if !ok {
			continue
		}
		str, err := request.ReadOptionalString(value)
		if err != nil {
			return input, errors.New(field.key + " must be a string")
		}
		*field.provided = true
		*field.target = str
	}

	if value, ok := body["order"]; ok && value != nil {
		order, err := request.ReadInt(value)
		if err != nil {
			return input, errors.New("order must be an integer")
		}
		input.Order = &order
	}

	if value, ok := body["duration"]; ok && value != nil {
		duration, err := request.ReadInt(value)
		if err != nil {
			return input, errors.New("duration must be an integer")
		}
		input.Duration = &duration
	}

	if value, ok := body["isPublished"]; ok {
		published, err := request.ReadBool(value)
		if err != nil {
			return input, errors.New("isPublished must be a boolean")
		}
		input.IsPublished = &published
	}

	return input, nil
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrLessonNotFound), errors.Is(err, ErrModuleNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrModuleIDRequired),
		errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrInvalidDuration):
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

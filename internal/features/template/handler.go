package template

import (
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
	"github.com/mo-amir99/wb-simple-server-go/pkg/validation"
)

// Handler processes template HTTP requests.
type Handler struct {
	db     *gorm.DB
	cache  cache.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler constructs a template handler instance.
func NewHandler(db *gorm.DB, cacheClient cache.Client, logger *slog.Logger) *Handler {
	return &Handler{db: db, cache: cacheClient, logger: logger, now: time.Now}
}

// List returns templates, most popular first.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	category := FilterCategory(c.Query("category"))
	key := cache.TemplatesListKey(category)

	var cached []Template
	if cache.Fetch(ctx, h.cache, h.logger, "templates", key, &cached) {
		response.Success(c, http.StatusOK, cached, "", nil)
		return
	}

	items, err := List(h.db.WithContext(ctx), category)
	if err != nil {
		h.respondError(c, err, "failed to list templates")
		return
	}

	cache.Store(ctx, h.cache, h.logger, key, items, cache.ContentTTL)
	response.Success(c, http.StatusOK, items, "", nil)
}

// Categories returns the categories that currently hold templates.
func (h *Handler) Categories(c *gin.Context) {
	categories, err := Categories(h.db.WithContext(c.Request.Context()))
	if err != nil {
		h.respondError(c, err, "failed to list categories")
		return
	}
	response.Success(c, http.StatusOK, categories, "", nil)
}

// GetByID returns one template.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("templateId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid template id", err)
		return
	}

	item, err := Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to load template")
		return
	}

	response.Success(c, http.StatusOK, item, "", nil)
}

// Download counts a download and returns the file URL. Premium templates
// need an active subscription.
func (h *Handler) Download(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	id, err := uuid.Parse(c.Param("templateId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid template id", err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	item, err := Get(db, id)
	if err != nil {
		h.respondError(c, err, "failed to load template")
		return
	}

	if item.IsPremium && !current.HasContentAccess(h.now()) {
		h.respondError(c, ErrPremiumRequired, "")
		return
	}

	if err := RecordDownload(db, id); err != nil {
		h.respondError(c, err, "failed to record download")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{"downloadUrl": item.FileURL}, "")
}

// Create inserts a template.
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		Title       string   `json:"title" binding:"required"`
		Description *string  `json:"description"`
		Category    string   `json:"category" binding:"required"`
		FileURL     string   `json:"fileUrl" binding:"required"`
		PreviewURL  *string  `json:"previewUrl"`
		IsPremium   bool     `json:"isPremium"`
		Popularity  int      `json:"popularity"`
		Tags        []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "title, category and fileUrl are required", err)
		return
	}

	item, err := Create(h.db.WithContext(c.Request.Context()), CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		FileURL:     req.FileURL,
		PreviewURL:  req.PreviewURL,
		IsPremium:   req.IsPremium,
		Popularity:  req.Popularity,
		Tags:        req.Tags,
	})
	if err != nil {
		h.respondError(c, err, "failed to create template")
		return
	}

	h.invalidate(c, item.Category)
	response.Created(c, item, "Template created successfully.")
}

// Update modifies a template.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("templateId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid template id", err)
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid template payload", err)
		return
	}

	input, err := readUpdateInput(body)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
		return
	}

	item, previousCategory, err := Update(h.db.WithContext(c.Request.Context()), id, input)
	if err != nil {
		h.respondError(c, err, "failed to update template")
		return
	}

	h.invalidate(c, item.Category, previousCategory)
	response.Success(c, http.StatusOK, item, "Template updated successfully.", nil)
}

// Delete removes a template.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("templateId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid template id", err)
		return
	}

	item, err := Delete(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to delete template")
		return
	}

	h.invalidate(c, item.Category)
	response.Success(c, http.StatusOK, true, "Template deleted successfully.", nil)
}

// invalidate drops the "all" list and every touched category list.
func (h *Handler) invalidate(c *gin.Context, categories ...string) {
	keys := []string{cache.TemplatesListKey("")}
	for _, category := range categories {
		if category != "" {
			keys = append(keys, cache.TemplatesListKey(category))
		}
	}
	cache.Invalidate(c.Request.Context(), h.cache, h.logger, keys...)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrTemplateNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrCategoryRequired),
		errors.Is(err, ErrFileURLRequired),
		errors.Is(err, ErrInvalidPopularity),
		errors.Is(err, validation.ErrInvalidCategory):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ErrPremiumRequired):
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, err.Error(), err)
	default:
		request.Abort(c, fallback, err)
	}
}

func readUpdateInput(body map[string]interface{}) (UpdateInput, error) {
	input := UpdateInput{}

	requiredStrings := []struct {
		key    string
		target **string
	}{
		{"title", &input.Title},
		{"category", &input.Category},
		{"fileUrl", &input.FileURL},
	}
	for _, field := range requiredStrings {
		value, ok := body[field.key]
		if !ok {
			continue
		}
		str, err := request.ReadString(value)
		if err != nil {
			return input, errors.New(field.key + " must be a non-empty string")
		}
		*field.target = &str
	}

	if value, ok := body["description"]; ok {
		str, err := request.ReadOptionalString(value)
		if err != nil {
			return input, errors.New("description must be a string")
		}
		input.DescriptionProvided = true
		input.Description = str
	}

	if value, ok := body["previewUrl"]; ok {
		str, err := request.ReadOptionalString(value)
		if err != nil {
			return input, errors.New("previewUrl must be a string")
		}
		input.PreviewURLProvided = true
		input.PreviewURL = str
	}

	if value, ok := body["isPremium"]; ok {
		premium, err := request.ReadBool(value)
		if err != nil {
			return input, errors.New("isPremium must be a boolean")
		}
		input.IsPremium = &premium
	}

	if value, ok := body["popularity"]; ok && value != nil {
		popularity, err := request.ReadInt(value)
		if err != nil {
			return input, errors.New("popularity must be an integer")
		}
		input.Popularity = &popularity
	}

	if value, ok := body["tags"]; ok {
		tags := []string{}
		if value != nil {
			parsed, err := request.ReadStringSlice(value)
			if err != nil {
				return input, errors.New("tags must be an array of strings")
			}
			tags = parsed
		}
		input.Tags = &tags
	}

	return input, nil
}

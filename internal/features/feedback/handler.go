package feedback

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/pagination"
	"github.com/mo-amir99/wb-simple-server-go/pkg/request"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler processes feedback HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler constructs a feedback handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type createRequest struct {
	LessonID *string `json:"lessonId"`
	ModuleID *string `json:"moduleId"`
	Rating   int     `json:"rating"`
	Comment  *string `json:"comment"`
}

// Create stores feedback from the caller.
func (h *Handler) Create(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid feedback payload", err)
		return
	}

	lessonID, err := parseOptionalUUID(req.LessonID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson id", err)
		return
	}
	moduleID, err := parseOptionalUUID(req.ModuleID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	item, err := Create(h.db.WithContext(c.Request.Context()), CreateInput{
		UserID:   current.ID,
		LessonID: lessonID,
		ModuleID: moduleID,
		Rating:   req.Rating,
		Comment:  req.Comment,
		IsAdmin:  current.IsAdmin(),
	})
	if err != nil {
		h.respondError(c, err, "failed to save feedback")
		return
	}

	response.Created(c, item, "Thank you for your feedback.")
}

// List returns paginated feedback for admins with the average rating.
func (h *Handler) List(c *gin.Context) {
	filters, err := filtersFromQuery(c)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid filter id", err)
		return
	}
	params := pagination.Extract(c)
	db := h.db.WithContext(c.Request.Context())

	items, total, err := List(db, filters, params)
	if err != nil {
		h.respondError(c, err, "failed to list feedback")
		return
	}

	average, _, err := AverageRating(db, filters)
	if err != nil {
		h.respondError(c, err, "failed to list feedback")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"items":         items,
		"averageRating": average,
	}, "", pagination.MetadataFrom(total, params))
}

// Mine returns the caller's own feedback.
func (h *Handler) Mine(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	items, err := ListByUser(h.db.WithContext(c.Request.Context()), current.ID)
	if err != nil {
		h.respondError(c, err, "failed to list feedback")
		return
	}

	response.Success(c, http.StatusOK, items, "", nil)
}

// Delete removes a feedback entry owned by the caller, or any entry for admins.
func (h *Handler) Delete(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	id, err := uuid.Parse(c.Param("feedbackId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid feedback id", err)
		return
	}

	if err := Delete(h.db.WithContext(c.Request.Context()), id, current); err != nil {
		h.respondError(c, err, "failed to delete feedback")
		return
	}

	response.Success(c, http.StatusOK, true, "Feedback deleted.", nil)
}

// Export streams the filtered feedback as an XLSX workbook.
func (h *Handler) Export(c *gin.Context) {
	filters, err := filtersFromQuery(c)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid filter id", err)
		return
	}

	rows, err := Export(h.db.WithContext(c.Request.Context()), filters)
	if err != nil {
		h.respondError(c, err, "failed to export feedback")
		return
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rows); err != nil {
		h.respondError(c, err, "failed to export feedback")
		return
	}

	fileName := fmt.Sprintf("feedback_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrTargetRequired),
		errors.Is(err, ErrInvalidRating),
		errors.Is(err, ErrCommentTooLong):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ErrFeedbackNotFound),
		errors.Is(err, ErrLessonNotFound),
		errors.Is(err, ErrModuleNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrDuplicateFeedback):
		response.ErrorWithLog(h.logger, c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, ErrForbidden):
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, err.Error(), err)
	default:
		request.Abort(c, fallback, err)
	}
}

func filtersFromQuery(c *gin.Context) (ListFilters, error) {
	var filters ListFilters
	var err error

	raw := c.Query("lessonId")
	if filters.LessonID, err = parseOptionalUUID(&raw); err != nil {
		return filters, err
	}
	raw = c.Query("moduleId")
	if filters.ModuleID, err = parseOptionalUUID(&raw); err != nil {
		return filters, err
	}
	raw = c.Query("userId")
	if filters.UserID, err = parseOptionalUUID(&raw); err != nil {
		return filters, err
	}
	return filters, nil
}

func parseOptionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

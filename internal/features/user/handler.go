package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/pkg/pagination"
	"github.com/mo-amir99/wb-simple-server-go/pkg/request"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// Handler processes user administration requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler constructs a user handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// List returns paginated users.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)
	filters := ListFilters{Keyword: c.Query("search")}

	if raw := c.Query("role"); raw != "" {
		role, ok := types.ParseRole(raw)
		if !ok {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, ErrInvalidRole.Error(), ErrInvalidRole)
			return
		}
		filters.Role = role
	}

	users, total, err := List(h.db.WithContext(c.Request.Context()), filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	response.Success(c, http.StatusOK, users, "", pagination.MetadataFrom(total, params))
}

// GetByID returns a single user.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	usr, err := Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to load user")
		return
	}

	response.Success(c, http.StatusOK, usr, "", nil)
}

// UpdateRole promotes or demotes a user.
func (h *Handler) UpdateRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid role payload", err)
		return
	}

	role, ok := types.ParseRole(req.Role)
	if !ok {
		h.respondError(c, ErrInvalidRole, "invalid role")
		return
	}

	if current, ok := FromContext(c); ok && current.ID == id && role != types.RoleAdmin {
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, "Admins cannot demote themselves.", nil)
		return
	}

	usr, err := SetRole(h.db.WithContext(c.Request.Context()), id, role)
	if err != nil {
		h.respondError(c, err, "failed to update role")
		return
	}

	h.logger.Info("user role changed", slog.String("userId", id.String()), slog.String("role", string(role)))
	response.Success(c, http.StatusOK, usr, "Role updated.", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrTelegramIDRequired):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	default:
		request.Abort(c, fallback, err)
	}
}

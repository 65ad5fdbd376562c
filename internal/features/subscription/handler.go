package subscription

import (
	"errors"
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
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// Handler processes subscription HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler constructs a subscription handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger, now: time.Now}
}

// List returns paginated subscriptions for admins.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)

	var filters ListFilters
	if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
			return
		}
		filters.UserID = &id
	}
	if raw := strings.ToLower(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := types.SubscriptionStatus(raw)
		switch status {
		case types.SubscriptionStatusActive, types.SubscriptionStatusExpired, types.SubscriptionStatusCancelled:
			filters.Status = status
		default:
			h.respondError(c, ErrInvalidStatusFilter, "")
			return
		}
	}

	items, total, err := List(h.db.WithContext(c.Request.Context()), filters, params)
	if err != nil {
		h.respondError(c, err, "failed to list subscriptions")
		return
	}

	response.Success(c, http.StatusOK, items, "", pagination.MetadataFrom(total, params))
}

// Current returns the caller's most recent subscription.
func (h *Handler) Current(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	sub, err := Current(h.db.WithContext(c.Request.Context()), current.ID)
	if err != nil {
		h.respondError(c, err, "failed to load subscription")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"subscription": sub,
		"isActive":     sub.IsActive(h.now()),
	}, "", nil)
}

type grantRequest struct {
	UserID       string   `json:"userId" binding:"required"`
	DurationDays *int     `json:"durationDays"`
	StartDate    *string  `json:"startDate"`
	EndDate      *string  `json:"endDate"`
	Amount       *float64 `json:"amount"`
	Currency     *string  `json:"currency"`
	PaymentID    *string  `json:"paymentId"`
	AutoRenewal  *bool    `json:"autoRenewal"`
}

// Grant creates a subscription for a user.
func (h *Handler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid subscription payload", err)
		return
	}

	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	startDate, err := request.ParseRFC3339Ptr(req.StartDate)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "startDate must be RFC3339", err)
		return
	}
	endDate, err := request.ParseRFC3339Ptr(req.EndDate)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "endDate must be RFC3339", err)
		return
	}

	input := GrantInput{
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
		PaymentID: req.PaymentID,
	}
	if req.DurationDays != nil {
		input.DurationDays = *req.DurationDays
	}
	if req.Amount != nil {
		input.Amount = types.NewMoney(*req.Amount)
	}
	if req.Currency != nil {
		input.Currency = types.Currency(strings.ToUpper(strings.TrimSpace(*req.Currency)))
	}
	if req.AutoRenewal != nil {
		input.AutoRenewal = *req.AutoRenewal
	}

	sub, err := Grant(h.db.WithContext(c.Request.Context()), input, h.now())
	if err != nil {
		h.respondError(c, err, "failed to grant subscription")
		return
	}

	h.logger.Info("subscription granted",
		slog.String("userId", userID.String()),
		slog.Time("endDate", sub.EndDate))
	response.Created(c, sub, "Subscription granted.")
}

// Cancel ends the caller's active subscription.
func (h *Handler) Cancel(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	sub, err := Cancel(h.db.WithContext(c.Request.Context()), current.ID, h.now())
	if err != nil {
		h.respondError(c, err, "failed to cancel subscription")
		return
	}

	response.Success(c, http.StatusOK, sub, "Subscription cancelled.", nil)
}

// SetAutoRenewal toggles renewal on the caller's active subscription.
func (h *Handler) SetAutoRenewal(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	var req struct {
		AutoRenewal *bool `json:"autoRenewal" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "autoRenewal is required", err)
		return
	}

	sub, err := SetAutoRenewal(h.db.WithContext(c.Request.Context()), current.ID, *req.AutoRenewal, h.now())
	if err != nil {
		h.respondError(c, err, "failed to update auto renewal")
		return
	}

	response.Success(c, http.StatusOK, sub, "", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	var status int
	var message string

	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrNoActiveSubscription):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, ErrActiveSubscription):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrPeriodRequired),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrInvalidStatusFilter):
		status = http.StatusBadRequest
		message = err.Error()
	default:
		request.Abort(c, fallback, err)
		return
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}

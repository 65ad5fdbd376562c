package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/request"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

// InitDataHeader carries raw initData on requests made from the Mini App.
const InitDataHeader = "X-Telegram-Init-Data"

// Handler processes authentication HTTP requests.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an auth handler instance.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Telegram exchanges Mini App initData for a session.
func (h *Handler) Telegram(c *gin.Context) {
	var req struct {
		InitData     string        `json:"initData"`
		TelegramUser *TelegramUser `json:"telegramUser"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid login payload", err)
		return
	}

	if req.InitData == "" {
		req.InitData = c.GetHeader(InitDataHeader)
	}

	authResp, err := h.service.AuthenticateTelegram(c.Request.Context(), TelegramLoginInput{
		InitData:     req.InitData,
		TelegramUser: req.TelegramUser,
	})
	if err != nil {
		h.respondError(c, err, "authentication failed")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, authResp, "Authentication successful")
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	usr, err := h.service.Me(c.Request.Context(), current.ID)
	if err != nil {
		h.respondError(c, err, "failed to load user")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{"user": usr}, "")
}

// Refresh issues a new token pair for a valid refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "refresh token is required", err)
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err, "failed to refresh token")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, pair, "Token refreshed")
}

// Logout revokes the caller's tokens.
func (h *Handler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	token := ExtractToken(c.GetHeader("Authorization"))
	if err := h.service.Logout(c.Request.Context(), token, req.RefreshToken); err != nil {
		h.respondError(c, err, "logout failed")
		return
	}

	response.Success(c, http.StatusOK, true, "Logout successful", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case IsVerificationError(err):
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Telegram authentication failed", err)
	case errors.Is(err, ErrRefreshTokenExpired):
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Refresh token expired", err)
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrUserNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, err.Error(), err)
	case errors.Is(err, user.ErrTelegramIDRequired):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	default:
		request.Abort(c, fallback, err)
	}
}

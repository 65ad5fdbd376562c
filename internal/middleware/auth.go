package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/auth"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/utils/jwt"
	"github.com/mo-amir99/wb-simple-server-go/pkg/apperrors"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

const identityKey = "identity"

// AuthMiddleware holds dependencies for authentication middleware.
type AuthMiddleware struct {
	service *auth.Service
	logger  *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(service *auth.Service, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{service: service, logger: logger}
}

// Authenticate requires a valid bearer token and loads the user into context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}
		c.Next()
	}
}

// OptionalAuth loads the user when a token is presented. Anonymous requests
// pass through, but a presented token must be valid.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader("Authorization")) == "" {
			c.Next()
			return
		}
		if !m.authenticate(c) {
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers whose role is not ADMIN.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		usr, ok := user.FromContext(c)
		if !ok {
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
			return
		}
		if !usr.IsAdmin() {
			response.ErrorWithLog(m.logger, c, http.StatusForbidden, "Access denied: Admin only.", errors.New("admin role required"))
			return
		}
		c.Next()
	}
}

// RequireAuth returns the handler chain for authenticated routes.
func (m *AuthMiddleware) RequireAuth() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.Authenticate()}
}

// RequireAdminAuth returns the handler chain for admin-only routes.
func (m *AuthMiddleware) RequireAdminAuth() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.Authenticate(), m.RequireAdmin()}
}

// Optional returns the handler chain for routes that personalize anonymous content.
func (m *AuthMiddleware) Optional() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.OptionalAuth()}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) bool {
	token := auth.ExtractToken(c.GetHeader("Authorization"))
	if token == "" {
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "No token provided", nil)
		return false
	}

	claims, usr, err := m.service.Authenticate(c.Request.Context(), token)
	if err != nil {
		m.respondAuthError(c, err)
		return false
	}

	if initData := c.GetHeader(auth.InitDataHeader); initData != "" {
		if err := m.service.VerifyInitDataFor(initData, claims.TelegramID); err != nil {
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Invalid Telegram init data", err)
			return false
		}
	}

	c.Set(identityKey, claims.Identity())
	user.SetContext(c, usr)
	return true
}

func (m *AuthMiddleware) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenRevoked):
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Token revoked", err)
	case errors.Is(err, jwt.ErrExpiredToken):
		response.AppError(m.logger, c, apperrors.New("Token expired", http.StatusUnauthorized, apperrors.ErrTokenExpired, err))
	case errors.Is(err, jwt.ErrInvalidToken):
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Invalid token", err)
	case errors.Is(err, auth.ErrUserNotFound):
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "User not found", err)
	default:
		response.ErrorWithLog(m.logger, c, http.StatusInternalServerError, "Authentication failed", err)
	}
}

// GetIdentity returns the token identity attached by Authenticate.
func GetIdentity(c *gin.Context) (jwt.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return jwt.Identity{}, false
	}
	identity, ok := value.(jwt.Identity)
	return identity, ok
}

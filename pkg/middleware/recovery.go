package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/wb-simple-server-go/pkg/apperrors"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

// Recovery recovers from panics and answers with a generic 500. Stack traces
// are logged only when includeStack is set (non-production).
func Recovery(logger *slog.Logger, includeStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				attrs := []any{
					slog.String("request_id", GetRequestID(c)),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.String("client_ip", c.ClientIP()),
					slog.Any("error", err),
				}
				if includeStack {
					attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				}
				logger.Error("panic recovered", attrs...)

				response.Error(c, http.StatusInternalServerError, "Internal server error",
					apperrors.Internal("panic", nil))
			}
		}()

		c.Next()
	}
}

package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/wb-simple-server-go/pkg/apperrors"
)

// Envelope represents the standard API response shape consumed by the Mini App.
type Envelope struct {
	Success    bool        `json:"success"`
	Status     int         `json:"status,omitempty"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
}

// Success writes a success response with optional message and data.
func Success(c *gin.Context, status int, data interface{}, message string, pagination interface{}) {
	c.JSON(status, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: pagination,
	})
}

// Created is a convenience helper for POST 201 responses.
func Created(c *gin.Context, data interface{}, message string) {
	Success(c, http.StatusCreated, data, message, nil)
}

// Error writes an error response carrying {status, message} and a machine
// readable code. Internal error details never reach the body.
func Error(c *gin.Context, status int, message string, err error) {
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Status:  status,
		Message: message,
		Error:   string(codeFor(status, err)),
	})
}

// ErrorWithLog writes an error response and logs the error via slog.
func ErrorWithLog(logger *slog.Logger, c *gin.Context, status int, message string, err error) {
	if logger != nil && err != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, message,
			slog.Int("status", status),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}

	Error(c, status, message, err)
}

// AppError writes the response described by an *apperrors.AppError.
func AppError(logger *slog.Logger, c *gin.Context, appErr *apperrors.AppError) {
	ErrorWithLog(logger, c, appErr.StatusCode(), appErr.Message(), appErr)
}

func codeFor(status int, err error) apperrors.ErrorCode {
	var appErr *apperrors.AppError
	if err != nil && errors.As(err, &appErr) && appErr.StatusCode() == status {
		return appErr.Code()
	}
	return apperrors.CodeForStatus(status)
}

package user

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTelegramIDRequired = errors.New("telegram id is required")
	ErrInvalidRole        = errors.New("role must be USER or ADMIN")
)

package auth

import "errors"

var (
	ErrInitDataMissing      = errors.New("telegram init data is required")
	ErrInitDataMalformed    = errors.New("telegram init data is malformed")
	ErrInitDataHashMissing  = errors.New("telegram init data hash is missing")
	ErrInitDataHashMismatch = errors.New("telegram init data signature mismatch")
	ErrInitDataExpired      = errors.New("telegram init data has expired")
	ErrBotTokenMissing      = errors.New("telegram bot token is not configured")
	ErrTelegramUserMissing  = errors.New("telegram user is missing")
	ErrTelegramUserMismatch = errors.New("telegram init data does not match the session")

	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrUserNotFound        = errors.New("user not found")
)

// IsVerificationError reports whether err came from initData verification.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrInitDataMissing) ||
		errors.Is(err, ErrInitDataMalformed) ||
		errors.Is(err, ErrInitDataHashMissing) ||
		errors.Is(err, ErrInitDataHashMismatch) ||
		errors.Is(err, ErrInitDataExpired) ||
		errors.Is(err, ErrBotTokenMissing) ||
		errors.Is(err, ErrTelegramUserMissing) ||
		errors.Is(err, ErrTelegramUserMismatch)
}

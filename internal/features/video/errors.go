package video

import "errors"

var (
	ErrVideoTokenExpired   = errors.New("video token expired")
	ErrRefererNotAllowed   = errors.New("referer not allowed")
	ErrUserAgentBlocked    = errors.New("user agent not allowed")
	ErrInvalidVideoToken   = errors.New("invalid video token")
	ErrFingerprintMismatch = errors.New("video token fingerprint mismatch")
	ErrTokenMismatch       = errors.New("video token does not match request")
	ErrVideoIDRequired     = errors.New("video id is required")
	ErrSubscriptionNeeded  = errors.New("active subscription required")
	ErrSourceUnavailable   = errors.New("video source unavailable")
	ErrInvalidProgress     = errors.New("progress must be a finite number")
)

// IsAccessDenied reports whether err is a verification failure that maps to 403.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrVideoTokenExpired) ||
		errors.Is(err, ErrRefererNotAllowed) ||
		errors.Is(err, ErrUserAgentBlocked) ||
		errors.Is(err, ErrInvalidVideoToken) ||
		errors.Is(err, ErrFingerprintMismatch) ||
		errors.Is(err, ErrTokenMismatch)
}

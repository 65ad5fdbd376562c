package subscription

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrActiveSubscription   = errors.New("user already has an active subscription")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrInvalidPeriod        = errors.New("subscription end date must be after its start date")
	ErrPeriodRequired       = errors.New("durationDays or endDate is required")
	ErrInvalidAmount        = errors.New("amount must not be negative")
	ErrInvalidCurrency      = errors.New("unsupported currency")
	ErrInvalidStatusFilter  = errors.New("invalid status filter")
)

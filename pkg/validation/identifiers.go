package validation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidCategory   = errors.New("invalid category. Use 2-50 lowercase characters (letters, numbers, hyphens)")
	ErrInvalidTelegramID = errors.New("telegram id must be a positive integer")
)

var (
	categoryRegex   = regexp.MustCompile(`^[\p{Ll}\p{Nd}-]{2,50}$`)
	telegramIDRegex = regexp.MustCompile(`^[1-9][0-9]{0,19}$`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// NormalizeCategory lowercases a category, joins words with hyphens, and
// validates the result. Cyrillic letters are allowed.
func NormalizeCategory(value string) (string, error) {
	normalized := whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	if !categoryRegex.MatchString(normalized) {
		return "", ErrInvalidCategory
	}
	return normalized, nil
}

// NormalizeTelegramID trims and validates a Telegram user id.
func NormalizeTelegramID(value string) (string, error) {
	normalized := strings.TrimSpace(value)
	if !telegramIDRegex.MatchString(normalized) {
		return "", ErrInvalidTelegramID
	}
	return normalized, nil
}

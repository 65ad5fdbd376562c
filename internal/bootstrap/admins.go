package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/validation"
)

// EnsureAdmins promotes the configured Telegram ids to ADMIN.
func EnsureAdmins(db *gorm.DB, telegramIDs []string, logger *slog.Logger) error {
	valid := make([]string, 0, len(telegramIDs))
	for _, raw := range telegramIDs {
		telegramID, err := validation.NormalizeTelegramID(raw)
		if err != nil {
			logger.Warn("ignoring invalid admin telegram id", slog.String("value", raw))
			continue
		}
		valid = append(valid, telegramID)
	}
	if len(valid) == 0 {
		return nil
	}

	promoted, err := user.EnsureAdmins(db, valid)
	if err != nil {
		if isUndefinedTableError(err) {
			logger.Warn("admin promotion skipped - users table missing")
			return nil
		}
		return fmt.Errorf("ensure admins: %w", err)
	}

	if promoted > 0 {
		logger.Info("configured admins promoted", slog.Int("count", promoted))
	}
	return nil
}

func isUndefinedTableError(err error) bool {
	if err == nil {
		return false
	}

	message := err.Error()
	return strings.Contains(message, "relation \"users\" does not exist") ||
		strings.Contains(message, "no such table: users")
}

package bootstrap

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/auth"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/feedback"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/progress"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/subscription"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/template"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/video"
	"github.com/mo-amir99/wb-simple-server-go/pkg/config"
	"github.com/mo-amir99/wb-simple-server-go/pkg/database"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&module.Module{},
		&lesson.Lesson{},
		&progress.LessonProgress{},
		&progress.ModuleProgress{},
		&video.VideoProgress{},
		&subscription.Subscription{},
		&feedback.Feedback{},
		&template.Template{},
		&auth.RevokedToken{},
	}
}

// ApplyDatabaseMigrations runs database migrations when enabled via configuration.
func ApplyDatabaseMigrations(db *gorm.DB, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Database.RunMigrations {
		logger.Info("database migrations skipped", slog.String("env_var", "DB_RUN_MIGRATIONS=false"))
		return nil
	}

	if err := database.Migrate(db, logger, Models()...); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

package subscription

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

const expiredMessage = "Your WB Simple subscription has ended. Renew it in the app to keep access to lessons and videos."

// Notifier delivers a text message to a Telegram user.
type Notifier interface {
	Notify(ctx context.Context, telegramID string, text string) error
}

// ExpirationJob closes lapsed subscriptions and tells their owners.
type ExpirationJob struct {
	db       *gorm.DB
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewExpirationJob creates the job. notifier may be nil.
func NewExpirationJob(db *gorm.DB, notifier Notifier, logger *slog.Logger) *ExpirationJob {
	return &ExpirationJob{db: db, notifier: notifier, logger: logger, now: time.Now}
}

func (j *ExpirationJob) Name() string {
	return "subscription-expiration"
}

func (j *ExpirationJob) Execute(ctx context.Context) error {
	expired, err := ExpireDue(j.db.WithContext(ctx), j.now())
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	j.logger.Info("expired subscriptions", slog.Int("count", len(expired)))

	if j.notifier == nil {
		return nil
	}

	notified := make(map[string]struct{}, len(expired))
	for _, e := range expired {
		if _, done := notified[e.TelegramID]; done {
			continue
		}
		notified[e.TelegramID] = struct{}{}

		if err := j.notifier.Notify(ctx, e.TelegramID, expiredMessage); err != nil {
			// A blocked bot or unknown chat must not stop the remaining notifications.
			j.logger.Warn("subscription expiry notification failed",
				slog.String("userId", e.UserID.String()),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

package subscription

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/pagination"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// Subscription mirrors the PostgreSQL subscriptions table.
type Subscription struct {
	types.BaseModel

	UserID      uuid.UUID                `gorm:"type:uuid;not null;column:user_id;index" json:"userId"`
	StartDate   time.Time                `gorm:"not null;column:start_date" json:"startDate"`
	EndDate     time.Time                `gorm:"not null;column:end_date;index:idx_subscriptions_status_end,priority:2" json:"endDate"`
	PaymentID   *string                  `gorm:"type:varchar(255);column:payment_id" json:"paymentId,omitempty"`
	Amount      types.Money              `gorm:"type:numeric(10,2);not null;default:0" json:"amount"`
	Currency    types.Currency           `gorm:"type:varchar(3);not null;default:'RUB'" json:"currency"`
	Status      types.SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_subscriptions_status_end,priority:1" json:"status"`
	AutoRenewal bool                     `gorm:"not null;default:false;column:auto_renewal" json:"autoRenewal"`

	User *user.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name.
func (Subscription) TableName() string { return "subscriptions" }

// IsActive reports whether the subscription grants access at now.
func (s Subscription) IsActive(now time.Time) bool {
	return s.Status == types.SubscriptionStatusActive && s.EndDate.After(now)
}

// GrantInput carries the data needed to grant a subscription.
type GrantInput struct {
	UserID       uuid.UUID
	StartDate    *time.Time
	EndDate      *time.Time
	DurationDays int
	Amount       types.Money
	Currency     types.Currency
	PaymentID    *string
	AutoRenewal  bool
}

// ListFilters narrows the admin listing.
type ListFilters struct {
	UserID *uuid.UUID
	Status types.SubscriptionStatus
}

// Expired describes a subscription closed by ExpireDue.
type Expired struct {
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	TelegramID     string
	EndDate        time.Time
}

// List queries subscriptions newest first.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Subscription, int64, error) {
	query := db.Model(&Subscription{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Subscription
	if err := query.Order("created_at DESC").Scopes(pagination.Paginate(params)).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Current returns the user's most recent subscription by end date.
func Current(db *gorm.DB, userID uuid.UUID) (Subscription, error) {
	var sub Subscription
	err := db.Where("user_id = ?", userID).
		Order("end_date DESC").
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sub, ErrSubscriptionNotFound
		}
		return sub, err
	}
	return sub, nil
}

// Grant creates an active subscription. A user holding an unexpired active
// subscription gets ErrActiveSubscription.
func Grant(db *gorm.DB, input GrantInput, now time.Time) (Subscription, error) {
	sub, err := newSubscription(input, now)
	if err != nil {
		return Subscription{}, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, input.UserID); err != nil {
			return err
		}

		var active int64
		if err := activeQuery(tx, input.UserID, now).Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveSubscription
		}

		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		return syncUser(tx, input.UserID, now)
	})

	return sub, err
}

// Cancel ends the user's active subscription immediately and turns off renewal.
func Cancel(db *gorm.DB, userID uuid.UUID, now time.Time) (Subscription, error) {
	var sub Subscription
	err := db.Transaction(func(tx *gorm.DB) error {
		found, err := findActive(tx, userID, now)
		if err != nil {
			return err
		}

		if err := tx.Model(&found).Updates(map[string]interface{}{
			"status":       types.SubscriptionStatusCancelled,
			"auto_renewal": false,
		}).Error; err != nil {
			return err
		}

		found.Status = types.SubscriptionStatusCancelled
		found.AutoRenewal = false
		sub = found
		return syncUser(tx, userID, now)
	})
	return sub, err
}

// SetAutoRenewal toggles renewal on the user's active subscription.
func SetAutoRenewal(db *gorm.DB, userID uuid.UUID, enabled bool, now time.Time) (Subscription, error) {
	var sub Subscription
	err := db.Transaction(func(tx *gorm.DB) error {
		found, err := findActive(tx, userID, now)
		if err != nil {
			return err
		}

		if err := tx.Model(&found).Update("auto_renewal", enabled).Error; err != nil {
			return err
		}

		found.AutoRenewal = enabled
		sub = found
		return syncUser(tx, userID, now)
	})
	return sub, err
}

// ExpireDue marks active subscriptions whose end date has passed as expired
// and clears access on the owning users.
func ExpireDue(db *gorm.DB, now time.Time) ([]Expired, error) {
	var expired []Expired
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table("subscriptions AS s").
			Select("s.id AS subscription_id, s.user_id, u.telegram_id, s.end_date").
			Joins("JOIN users u ON u.id = s.user_id").
			Where("s.status = ? AND s.end_date <= ?", types.SubscriptionStatusActive, now).
			Scan(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(expired))
		users := make(map[uuid.UUID]struct{}, len(expired))
		for _, e := range expired {
			ids = append(ids, e.SubscriptionID)
			users[e.UserID] = struct{}{}
		}

		if err := tx.Model(&Subscription{}).
			Where("id IN ?", ids).
			Update("status", types.SubscriptionStatusExpired).Error; err != nil {
			return err
		}

		for userID := range users {
			if err := syncUser(tx, userID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func newSubscription(input GrantInput, now time.Time) (Subscription, error) {
	start := now
	if input.StartDate != nil {
		start = *input.StartDate
	}

	var end time.Time
	switch {
	case input.EndDate != nil:
		end = *input.EndDate
	case input.DurationDays > 0:
		end = start.AddDate(0, 0, input.DurationDays)
	default:
		return Subscription{}, ErrPeriodRequired
	}
	if !end.After(start) || !end.After(now) {
		return Subscription{}, ErrInvalidPeriod
	}

	if input.Amount.IsNegative() {
		return Subscription{}, ErrInvalidAmount
	}

	currency := input.Currency
	if currency == "" {
		currency = types.CurrencyRUB
	}
	if !currency.IsValid() {
		return Subscription{}, ErrInvalidCurrency
	}

	return Subscription{
		UserID:      input.UserID,
		StartDate:   start,
		EndDate:     end,
		PaymentID:   input.PaymentID,
		Amount:      input.Amount,
		Currency:    currency,
		Status:      types.SubscriptionStatusActive,
		AutoRenewal: input.AutoRenewal,
	}, nil
}

func activeQuery(db *gorm.DB, userID uuid.UUID, now time.Time) *gorm.DB {
	return db.Model(&Subscription{}).
		Where("user_id = ? AND status = ? AND end_date > ?", userID, types.SubscriptionStatusActive, now)
}

func findActive(db *gorm.DB, userID uuid.UUID, now time.Time) (Subscription, error) {
	var sub Subscription
	err := activeQuery(db, userID, now).Order("end_date DESC").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sub, ErrNoActiveSubscription
		}
		return sub, err
	}
	return sub, nil
}

func ensureUser(db *gorm.DB, userID uuid.UUID) error {
	if _, err := user.Get(db, userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// syncUser copies the user's access state from their active subscription.
func syncUser(tx *gorm.DB, userID uuid.UUID, now time.Time) error {
	updates := map[string]interface{}{
		"has_active_subscription": false,
		"subscription_end_date":   nil,
		"auto_renewal":            false,
	}

	active, err := findActive(tx, userID, now)
	switch {
	case err == nil:
		updates["has_active_subscription"] = true
		updates["subscription_end_date"] = active.EndDate
		updates["auto_renewal"] = active.AutoRenewal
	case errors.Is(err, ErrNoActiveSubscription):
		if latest, err := Current(tx, userID); err == nil {
			updates["subscription_end_date"] = latest.EndDate
		}
	default:
		return err
	}

	return tx.Model(&user.User{}).Where("id = ?", userID).Updates(updates).Error
}

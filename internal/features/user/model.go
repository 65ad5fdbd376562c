package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/wb-simple-server-go/pkg/pagination"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// User is a Mini App user, identified by their Telegram id.
type User struct {
	types.BaseModel

	TelegramID            string     `gorm:"type:varchar(32);not null;uniqueIndex;column:telegram_id" json:"telegramId"`
	Username              string     `gorm:"type:varchar(64);not null;default:''" json:"username"`
	FirstName             string     `gorm:"type:varchar(128);not null;default:'';column:first_name" json:"firstName"`
	LastName              *string    `gorm:"type:varchar(128);column:last_name" json:"lastName,omitempty"`
	PhotoURL              *string    `gorm:"type:text;column:photo_url" json:"photoUrl,omitempty"`
	LanguageCode          *string    `gorm:"type:varchar(16);column:language_code" json:"languageCode,omitempty"`
	Role                  types.Role `gorm:"type:varchar(10);not null;default:'USER';index" json:"role"`
	HasActiveSubscription bool       `gorm:"not null;default:false;column:has_active_subscription" json:"hasActiveSubscription"`
	SubscriptionEndDate   *time.Time `gorm:"column:subscription_end_date" json:"subscriptionEndDate,omitempty"`
	AutoRenewal           bool       `gorm:"not null;default:false;column:auto_renewal" json:"autoRenewal"`
	LastLoginAt           *time.Time `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
}

// TableName overrides the default table name.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == types.RoleAdmin
}

// HasContentAccess reports whether the user may open paid content at now.
func (u *User) HasContentAccess(now time.Time) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	if !u.HasActiveSubscription {
		return false
	}
	return u.SubscriptionEndDate == nil || u.SubscriptionEndDate.After(now)
}

// Profile carries the Telegram-provided fields refreshed on every login.
type Profile struct {
	TelegramID   string
	Username     string
	FirstName    string
	LastName     *string
	PhotoURL     *string
	LanguageCode *string
}

// ListFilters defines user query filters.
type ListFilters struct {
	Keyword string
	Role    types.Role
}

// List queries users with filters and pagination.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]User, int64, error) {
	query := db.Model(&User{})

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR telegram_id LIKE ?",
			keyword, keyword, keyword)
	}

	if filters.Role != "" {
		query = query.Where("role = ?", filters.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []User
	if err := query.Order("created_at DESC").Scopes(pagination.Paginate(params)).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uuid.UUID) (User, error) {
	var user User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// GetByTelegramID retrieves a user by Telegram id.
func GetByTelegramID(db *gorm.DB, telegramID string) (User, error) {
	var user User
	if err := db.First(&user, "telegram_id = ?", telegramID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// FindOrCreate returns the user for profile.TelegramID, creating it with the
// USER role on first login. Existing users only get changed profile fields
// and lastLoginAt written.
func FindOrCreate(db *gorm.DB, profile Profile, now time.Time) (User, bool, error) {
	telegramID := strings.TrimSpace(profile.TelegramID)
	if telegramID == "" {
		return User{}, false, ErrTelegramIDRequired
	}

	var (
		result  User
		created bool
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		existing, err := GetByTelegramID(tx, telegramID)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}

		if errors.Is(err, ErrUserNotFound) {
			fresh := User{
				TelegramID:   telegramID,
				Username:     strings.TrimSpace(profile.Username),
				FirstName:    strings.TrimSpace(profile.FirstName),
				LastName:     trimStringPtr(profile.LastName),
				PhotoURL:     trimStringPtr(profile.PhotoURL),
				LanguageCode: trimStringPtr(profile.LanguageCode),
				Role:         types.RoleUser,
				LastLoginAt:  &now,
			}

			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "telegram_id"}},
				DoNothing: true,
			}).Create(&fresh)
			if res.Error != nil {
				return res.Error
			}

			if res.RowsAffected == 1 {
				result, created = fresh, true
				return nil
			}

			// A concurrent login inserted the row first.
			existing, err = GetByTelegramID(tx, telegramID)
			if err != nil {
				return err
			}
		}

		updates := profileDrift(existing, profile)
		updates["last_login_at"] = now
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return err
		}

		result, err = Get(tx, existing.ID)
		return err
	})

	return result, created, err
}

// profileDrift returns the column updates needed to bring u in line with p.
func profileDrift(u User, p Profile) map[string]interface{} {
	updates := map[string]interface{}{}

	if username := strings.TrimSpace(p.Username); username != u.Username {
		updates["username"] = username
	}
	if firstName := strings.TrimSpace(p.FirstName); firstName != u.FirstName {
		updates["first_name"] = firstName
	}
	if lastName := trimStringPtr(p.LastName); !equalStringPtr(lastName, u.LastName) {
		updates["last_name"] = lastName
	}
	if photo := trimStringPtr(p.PhotoURL); !equalStringPtr(photo, u.PhotoURL) {
		updates["photo_url"] = photo
	}
	if lang := trimStringPtr(p.LanguageCode); !equalStringPtr(lang, u.LanguageCode) {
		updates["language_code"] = lang
	}

	return updates
}

// SetRole changes a user's role.
func SetRole(db *gorm.DB, id uuid.UUID, role types.Role) (User, error) {
	usr, err := Get(db, id)
	if err != nil {
		return usr, err
	}

	if err := db.Model(&usr).Update("role", role).Error; err != nil {
		return usr, err
	}

	return Get(db, id)
}

// EnsureAdmins promotes the given Telegram ids to ADMIN, creating placeholder
// rows for ids that have never logged in. Returns how many rows changed.
func EnsureAdmins(db *gorm.DB, telegramIDs []string) (int, error) {
	changed := 0
	for _, raw := range telegramIDs {
		telegramID := strings.TrimSpace(raw)
		if telegramID == "" {
			continue
		}

		existing, err := GetByTelegramID(db, telegramID)
		switch {
		case errors.Is(err, ErrUserNotFound):
			admin := User{TelegramID: telegramID, Role: types.RoleAdmin}
			if err := db.Create(&admin).Error; err != nil {
				return changed, err
			}
			changed++
		case err != nil:
			return changed, err
		case !existing.IsAdmin():
			if err := db.Model(&existing).Update("role", types.RoleAdmin).Error; err != nil {
				return changed, err
			}
			changed++
		}
	}
	return changed, nil
}

func trimStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

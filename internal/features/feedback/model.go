package feedback

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/pagination"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

const maxCommentLength = 2000

// Feedback is a rating left on either a lesson or a module.
type Feedback struct {
	types.BaseModel

	UserID   uuid.UUID  `gorm:"type:uuid;not null;column:user_id;index" json:"userId"`
	LessonID *uuid.UUID `gorm:"type:uuid;column:lesson_id;index" json:"lessonId,omitempty"`
	ModuleID *uuid.UUID `gorm:"type:uuid;column:module_id;index" json:"moduleId,omitempty"`
	Rating   int        `gorm:"not null" json:"rating"`
	Comment  *string    `gorm:"type:text" json:"comment,omitempty"`

	User   *user.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Lesson *lesson.Lesson `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE" json:"-"`
	Module *module.Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name.
func (Feedback) TableName() string { return "feedback" }

// CreateInput carries a new feedback entry.
type CreateInput struct {
	UserID   uuid.UUID
	LessonID *uuid.UUID
	ModuleID *uuid.UUID
	Rating   int
	Comment  *string
	// IsAdmin lets the author rate unpublished content.
	IsAdmin bool
}

// ListFilters narrows admin listings and exports.
type ListFilters struct {
	LessonID *uuid.UUID
	ModuleID *uuid.UUID
	UserID   *uuid.UUID
}

// ExportRow is a feedback entry joined with its author and target titles.
type ExportRow struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	TelegramID  string
	Username    string
	LessonTitle *string
	ModuleTitle *string
	Rating      int
	Comment     *string
}

// Create validates and stores feedback. A user may rate a given lesson or
// module only once.
func Create(db *gorm.DB, input CreateInput) (Feedback, error) {
	if (input.LessonID == nil) == (input.ModuleID == nil) {
		return Feedback{}, ErrTargetRequired
	}
	if input.Rating < 1 || input.Rating > 5 {
		return Feedback{}, ErrInvalidRating
	}

	comment := input.Comment
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if utf8.RuneCountInString(trimmed) > maxCommentLength {
			return Feedback{}, ErrCommentTooLong
		}
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	item := Feedback{
		UserID:   input.UserID,
		LessonID: input.LessonID,
		ModuleID: input.ModuleID,
		Rating:   input.Rating,
		Comment:  comment,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ensureTarget(tx, input.LessonID, input.ModuleID, input.IsAdmin); err != nil {
			return err
		}

		query := tx.Model(&Feedback{}).Where("user_id = ?", input.UserID)
		if input.LessonID != nil {
			query = query.Where("lesson_id = ?", *input.LessonID)
		} else {
			query = query.Where("module_id = ?", *input.ModuleID)
		}

		var existing int64
		if err := query.Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateFeedback
		}

		return tx.Create(&item).Error
	})

	return item, err
}

// List returns feedback newest first.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Feedback, int64, error) {
	query := applyFilters(db.Model(&Feedback{}), filters, "")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Feedback
	if err := query.Order("created_at DESC").Scopes(pagination.Paginate(params)).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// ListByUser returns every feedback entry written by userID.
func ListByUser(db *gorm.DB, userID uuid.UUID) ([]Feedback, error) {
	var items []Feedback
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&items).Error
	return items, err
}

// AverageRating returns the mean rating and count for the filtered set.
func AverageRating(db *gorm.DB, filters ListFilters) (float64, int64, error) {
	var result struct {
		Average *float64
		Count   int64
	}
	err := applyFilters(db.Model(&Feedback{}), filters, "").
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Scan(&result).Error
	if err != nil {
		return 0, 0, err
	}
	if result.Average == nil {
		return 0, result.Count, nil
	}
	return *result.Average, result.Count, nil
}

// Get retrieves feedback by ID.
func Get(db *gorm.DB, id uuid.UUID) (Feedback, error) {
	var item Feedback
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return item, ErrFeedbackNotFound
		}
		return item, err
	}
	return item, nil
}

// Delete removes feedback owned by requester. Admins may delete any entry.
func Delete(db *gorm.DB, id uuid.UUID, requester *user.User) error {
	return db.Transaction(func(tx *gorm.DB) error {
		item, err := Get(tx, id)
		if err != nil {
			return err
		}
		if item.UserID != requester.ID && !requester.IsAdmin() {
			return ErrForbidden
		}
		return tx.Delete(&Feedback{}, "id = ?", id).Error
	})
}

// Export returns the filtered feedback joined with author and target names.
func Export(db *gorm.DB, filters ListFilters) ([]ExportRow, error) {
	var rows []ExportRow
	err := applyFilters(db.Table("feedback AS f"), filters, "f.").
		Select(`f.id, f.created_at, u.telegram_id, u.username,
			l.title AS lesson_title, m.title AS module_title, f.rating, f.comment`).
		Joins("JOIN users u ON u.id = f.user_id").
		Joins("LEFT JOIN lessons l ON l.id = f.lesson_id").
		Joins("LEFT JOIN modules m ON m.id = f.module_id").
		Order("f.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

func applyFilters(query *gorm.DB, filters ListFilters, prefix string) *gorm.DB {
	if filters.LessonID != nil {
		query = query.Where(prefix+"lesson_id = ?", *filters.LessonID)
	}
	if filters.ModuleID != nil {
		query = query.Where(prefix+"module_id = ?", *filters.ModuleID)
	}
	if filters.UserID != nil {
		query = query.Where(prefix+"user_id = ?", *filters.UserID)
	}
	return query
}

func ensureTarget(db *gorm.DB, lessonID, moduleID *uuid.UUID, isAdmin bool) error {
	if lessonID != nil {
		if _, err := lesson.GetVisible(db, *lessonID, isAdmin); err != nil {
			if errors.Is(err, lesson.ErrLessonNotFound) {
				return ErrLessonNotFound
			}
			return err
		}
		return nil
	}

	if _, err := module.GetVisible(db, *moduleID, isAdmin); err != nil {
		if errors.Is(err, module.ErrModuleNotFound) {
			return ErrModuleNotFound
		}
		return err
	}
	return nil
}

package lesson

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// Lesson belongs to exactly one module. Order is unique within the module.
type Lesson struct {
	types.BaseModel

	ModuleID    uuid.UUID `gorm:"type:uuid;not null;index;column:module_id" json:"moduleId"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	Content     *string   `gorm:"type:text" json:"content,omitempty"`
	Order       int       `gorm:"column:order;not null;default:0" json:"order"`
	VideoID     *string   `gorm:"type:varchar(255);column:video_id;index" json:"videoId,omitempty"`
	VideoURL    *string   `gorm:"type:text;column:video_url" json:"videoUrl,omitempty"`
	Duration    int       `gorm:"not null;default:0" json:"duration"` // seconds
	IsPublished bool      `gorm:"column:is_published;not null;default:false" json:"isPublished"`

	Module *module.Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name.
func (Lesson) TableName() string { return "lessons" }

// CreateInput carries data for creating a new lesson.
type CreateInput struct {
	ModuleID    uuid.UUID
	Title       string
	Description *string
	Content     *string
	Order       *int
	VideoID     *string
	VideoURL    *string
	Duration    int
	IsPublished bool
}

// UpdateInput captures mutable lesson fields.
type UpdateInput struct {
	ModuleID            *uuid.UUID
	Title               *string
	DescriptionProvided bool
	Description         *string
	ContentProvided     bool
	Content             *string
	Order               *int
	VideoIDProvided     bool
	VideoID             *string
	VideoURLProvided    bool
	VideoURL            *string
	Duration            *int
	IsPublished         *bool
}

// ListByModule returns a module's lessons in order.
func ListByModule(db *gorm.DB, moduleID uuid.UUID, publishedOnly bool) ([]Lesson, error) {
	query := db.Model(&Lesson{}).Where("module_id = ?", moduleID)
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}

	lessons := make([]Lesson, 0)
	if err := query.Order(`"order" ASC, created_at ASC`).Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

// ListVisibleByModule lists lessons of a module the caller may see. Missing
// or unpublished modules are reported as ErrModuleNotFound for non-admins.
func ListVisibleByModule(db *gorm.DB, moduleID uuid.UUID, isAdmin bool) ([]Lesson, error) {
	if _, err := module.GetVisible(db, moduleID, isAdmin); err != nil {
		if errors.Is(err, module.ErrModuleNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	return ListByModule(db, moduleID, !isAdmin)
}

// Get retrieves a lesson by ID.
func Get(db *gorm.DB, id uuid.UUID) (Lesson, error) {
	var lesson Lesson
	if err := db.First(&lesson, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lesson, ErrLessonNotFound
		}
		return lesson, err
	}
	return lesson, nil
}

// GetVisible hides unpublished lessons, and lessons of unpublished modules,
// from non-admins.
func GetVisible(db *gorm.DB, id uuid.UUID, isAdmin bool) (Lesson, error) {
	lesson, err := Get(db, id)
	if err != nil || isAdmin {
		return lesson, err
	}

	if !lesson.IsPublished {
		return Lesson{}, ErrLessonNotFound
	}

	if _, err := module.GetVisible(db, lesson.ModuleID, false); err != nil {
		if errors.Is(err, module.ErrModuleNotFound) {
			return Lesson{}, ErrLessonNotFound
		}
		return Lesson{}, err
	}

	return lesson, nil
}

// Create inserts a lesson into an existing module.
func Create(db *gorm.DB, input CreateInput) (Lesson, error) {
	if input.ModuleID == uuid.Nil {
		return Lesson{}, ErrModuleIDRequired
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Lesson{}, ErrTitleRequired
	}

	if input.Duration < 0 {
		return Lesson{}, ErrInvalidDuration
	}

	lesson := Lesson{
		ModuleID:    input.ModuleID,
		Title:       title,
		Description: input.Description,
		Content:     input.Content,
		VideoID:     input.VideoID,
		VideoURL:    input.VideoURL,
		Duration:    input.Duration,
		IsPublished: input.IsPublished,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ensureModuleExists(tx, input.ModuleID); err != nil {
			return err
		}

		if input.Order != nil {
			if *input.Order < 0 {
				return ErrInvalidOrder
			}
			if err := ensureOrderFree(tx, input.ModuleID, *input.Order, uuid.Nil); err != nil {
				return err
			}
			lesson.Order = *input.Order
		} else {
			next, err := nextOrder(tx, input.ModuleID)
			if err != nil {
				return err
			}
			lesson.Order = next
		}

		return tx.Create(&lesson).Error
	})
	if err != nil {
		return Lesson{}, err
	}

	return lesson, nil
}

// Update modifies lesson fields. It returns the updated lesson and the
// module it belonged to before the update.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Lesson, uuid.UUID, error) {
	var (
		updated        Lesson
		previousModule uuid.UUID
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		lesson, err := Get(tx, id)
		if err != nil {
			return err
		}
		previousModule = lesson.ModuleID

		updates := map[string]interface{}{}
		targetModule := lesson.ModuleID

		if input.ModuleID != nil && *input.ModuleID != lesson.ModuleID {
			if err := ensureModuleExists(tx, *input.ModuleID); err != nil {
				return err
			}
			targetModule = *input.ModuleID
			updates["module_id"] = targetModule
		}

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return ErrTitleRequired
			}
			updates["title"] = title
		}

		if input.DescriptionProvided {
			updates["description"] = input.Description
		}
		if input.ContentProvided {
			updates["content"] = input.Content
		}
		if input.VideoIDProvided {
			updates["video_id"] = input.VideoID
		}
		if input.VideoURLProvided {
			updates["video_url"] = input.VideoURL
		}

		if input.Duration != nil {
			if *input.Duration < 0 {
				return ErrInvalidDuration
			}
			updates["duration"] = *input.Duration
		}

		if input.IsPublished != nil {
			updates["is_published"] = *input.IsPublished
		}

		order := lesson.Order
		if input.Order != nil {
			if *input.Order < 0 {
				return ErrInvalidOrder
			}
			order = *input.Order
		}
		if order != lesson.Order || targetModule != lesson.ModuleID {
			if err := ensureOrderFree(tx, targetModule, order, id); err != nil {
				return err
			}
			updates["order"] = order
		}

		if len(updates) > 0 {
			if err := tx.Model(&lesson).Updates(updates).Error; err != nil {
				return err
			}
		}

		updated, err = Get(tx, id)
		return err
	})

	return updated, previousModule, err
}

// Delete removes a lesson and returns it. Progress and feedback rows
// referencing it are removed by cascade.
func Delete(db *gorm.DB, id uuid.UUID) (Lesson, error) {
	var deleted Lesson

	err := db.Transaction(func(tx *gorm.DB) error {
		lesson, err := Get(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&lesson).Error; err != nil {
			return err
		}
		deleted = lesson
		return nil
	})

	return deleted, err
}

// FindByVideoID returns the lesson that carries videoID, if any.
func FindByVideoID(db *gorm.DB, videoID string) (Lesson, error) {
	var lesson Lesson
	if err := db.Where("video_id = ?", videoID).Order("created_at ASC").First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lesson, ErrLessonNotFound
		}
		return lesson, err
	}
	return lesson, nil
}

func ensureModuleExists(db *gorm.DB, moduleID uuid.UUID) error {
	var count int64
	if err := db.Model(&module.Module{}).Where("id = ?", moduleID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrModuleNotFound
	}
	return nil
}

func ensureOrderFree(db *gorm.DB, moduleID uuid.UUID, order int, exclude uuid.UUID) error {
	query := db.Model(&Lesson{}).Where(`module_id = ? AND "order" = ?`, moduleID, order)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrOrderTaken
	}
	return nil
}

func nextOrder(db *gorm.DB, moduleID uuid.UUID) (int, error) {
	var max sql.NullInt64
	if err := db.Model(&Lesson{}).Where("module_id = ?", moduleID).Select(`MAX("order")`).Row().Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

package module

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// Module is an ordered container of lessons.
type Module struct {
	types.BaseModel

	Title       string  `gorm:"type:varchar(200);not null" json:"title"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	Order       int     `gorm:"column:order;not null;default:0;index" json:"order"`
	IsPublished bool    `gorm:"column:is_published;not null;default:false;index" json:"isPublished"`
	ImageURL    *string `gorm:"type:text;column:image_url" json:"imageUrl,omitempty"`

	LessonsCount int64           `gorm:"-" json:"lessonsCount"`
	Lessons      []LessonSummary `gorm:"-" json:"lessons,omitempty"`
}

// TableName overrides the default table name.
func (Module) TableName() string { return "modules" }

// LessonSummary is the lesson projection embedded in module responses.
type LessonSummary struct {
	ID          uuid.UUID `json:"id"`
	ModuleID    uuid.UUID `json:"moduleId"`
	Title       string    `json:"title"`
	Order       int       `gorm:"column:order" json:"order"`
	Duration    int       `json:"duration"`
	VideoID     *string   `json:"videoId,omitempty"`
	IsPublished bool      `json:"isPublished"`
}

func (LessonSummary) TableName() string {
	return "lessons"
}

// ListFilters defines module query filters.
type ListFilters struct {
	PublishedOnly  bool
	IncludeLessons bool
}

// CreateInput captures fields for a new module.
type CreateInput struct {
	Title       string
	Description *string
	Order       *int
	IsPublished bool
	ImageURL    *string
}

// UpdateInput captures mutable fields.
type UpdateInput struct {
	Title               *string
	DescriptionProvided bool
	Description         *string
	Order               *int
	IsPublished         *bool
	ImageURLProvided    bool
	ImageURL            *string
}

// List returns modules ordered for display, with lesson counts attached.
func List(db *gorm.DB, filters ListFilters) ([]Module, error) {
	query := db.Model(&Module{})
	if filters.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}

	modules := make([]Module, 0)
	if err := query.Order(`"order" ASC, created_at ASC`).Find(&modules).Error; err != nil {
		return nil, err
	}

	if err := attachLessons(db, modules, filters); err != nil {
		return nil, err
	}

	return modules, nil
}

// Get retrieves a module by ID with its published lesson count.
func Get(db *gorm.DB, id uuid.UUID) (Module, error) {
	var module Module
	if err := db.First(&module, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return module, ErrModuleNotFound
		}
		return module, err
	}

	count, err := CountPublishedLessons(db, id)
	if err != nil {
		return module, err
	}
	module.LessonsCount = count

	return module, nil
}

// GetVisible returns the module unless it is hidden from the caller.
// Unpublished modules read as not found for non-admins.
func GetVisible(db *gorm.DB, id uuid.UUID, isAdmin bool) (Module, error) {
	module, err := Get(db, id)
	if err != nil {
		return module, err
	}
	if !isAdmin && !module.IsPublished {
		return Module{}, ErrModuleNotFound
	}
	return module, nil
}

// GetWithLessons loads the module and its lessons in display order.
func GetWithLessons(db *gorm.DB, id uuid.UUID, isAdmin bool) (Module, error) {
	module, err := GetVisible(db, id, isAdmin)
	if err != nil {
		return module, err
	}

	modules := []Module{module}
	if err := attachLessons(db, modules, ListFilters{PublishedOnly: !isAdmin, IncludeLessons: true}); err != nil {
		return module, err
	}
	return modules[0], nil
}

// CountPublishedLessons counts the lessons that make up module completion.
func CountPublishedLessons(db *gorm.DB, moduleID uuid.UUID) (int64, error) {
	var count int64
	err := db.Model(&LessonSummary{}).
		Where("module_id = ? AND is_published = ?", moduleID, true).
		Count(&count).Error
	return count, err
}

// Create inserts a module. Without an explicit order it is appended last.
func Create(db *gorm.DB, input CreateInput) (Module, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Module{}, ErrTitleRequired
	}

	module := Module{
		Title:       title,
		Description: input.Description,
		IsPublished: input.IsPublished,
		ImageURL:    input.ImageURL,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if input.Order != nil {
			if *input.Order < 0 {
				return ErrInvalidOrder
			}
			if err := ensureOrderFree(tx, *input.Order, uuid.Nil); err != nil {
				return err
			}
			module.Order = *input.Order
		} else {
			next, err := nextOrder(tx)
			if err != nil {
				return err
			}
			module.Order = next
		}

		return tx.Create(&module).Error
	})
	if err != nil {
		return Module{}, err
	}

	return module, nil
}

// Update modifies module fields.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Module, error) {
	var updated Module

	err := db.Transaction(func(tx *gorm.DB) error {
		module, err := Get(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}

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

		if input.Order != nil && *input.Order != module.Order {
			if *input.Order < 0 {
				return ErrInvalidOrder
			}
			if err := ensureOrderFree(tx, *input.Order, id); err != nil {
				return err
			}
			updates["order"] = *input.Order
		}

		if input.IsPublished != nil {
			updates["is_published"] = *input.IsPublished
		}

		if input.ImageURLProvided {
			updates["image_url"] = input.ImageURL
		}

		if len(updates) > 0 {
			if err := tx.Model(&module).Updates(updates).Error; err != nil {
				return err
			}
		}

		updated, err = Get(tx, id)
		return err
	})

	return updated, err
}

// Delete removes a module. Lessons, progress, and feedback go with it
// through ON DELETE CASCADE constraints.
func Delete(db *gorm.DB, id uuid.UUID) error {
	res := db.Delete(&Module{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrModuleNotFound
	}
	return nil
}

func ensureOrderFree(db *gorm.DB, order int, exclude uuid.UUID) error {
	query := db.Model(&Module{}).Where(`"order" = ?`, order)
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

func nextOrder(db *gorm.DB) (int, error) {
	var max sql.NullInt64
	if err := db.Model(&Module{}).Select(`MAX("order")`).Row().Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

func attachLessons(db *gorm.DB, modules []Module, filters ListFilters) error {
	if len(modules) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(modules))
	for i := range modules {
		ids[i] = modules[i].ID
	}

	var counts []struct {
		ModuleID uuid.UUID
		Total    int64
	}
	if err := db.Model(&LessonSummary{}).
		Select("module_id, COUNT(*) AS total").
		Where("module_id IN ? AND is_published = ?", ids, true).
		Group("module_id").
		Scan(&counts).Error; err != nil {
		return err
	}

	countByModule := make(map[uuid.UUID]int64, len(counts))
	for _, row := range counts {
		countByModule[row.ModuleID] = row.Total
	}

	var byModule map[uuid.UUID][]LessonSummary
	if filters.IncludeLessons {
		query := db.Model(&LessonSummary{}).Where("module_id IN ?", ids)
		if filters.PublishedOnly {
			query = query.Where("is_published = ?", true)
		}

		var lessons []LessonSummary
		if err := query.Order(`"order" ASC`).Find(&lessons).Error; err != nil {
			return err
		}

		byModule = make(map[uuid.UUID][]LessonSummary, len(modules))
		for _, lesson := range lessons {
			byModule[lesson.ModuleID] = append(byModule[lesson.ModuleID], lesson)
		}
	}

	for i := range modules {
		modules[i].LessonsCount = countByModule[modules[i].ID]
		if filters.IncludeLessons {
			modules[i].Lessons = byModule[modules[i].ID]
			if modules[i].Lessons == nil {
				modules[i].Lessons = []LessonSummary{}
			}
		}
	}

	return nil
}

// lessonIDsOf returns the ids of every lesson in the module, published or not.
func lessonIDsOf(db *gorm.DB, moduleID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Model(&LessonSummary{}).Where("module_id = ?", moduleID).Pluck("id", &ids).Error
	return ids, err
}

package template

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
	"github.com/mo-amir99/wb-simple-server-go/pkg/validation"
)

// Template is a downloadable marketplace asset such as a card layout or a
// product description preset. FileURL is only handed out by the download
// endpoint.
type Template struct {
	types.BaseModel

	Title       string                      `gorm:"type:varchar(255);not null" json:"title"`
	Description *string                     `gorm:"type:text" json:"description,omitempty"`
	Category    string                      `gorm:"type:varchar(100);not null;index" json:"category"`
	FileURL     string                      `gorm:"type:text;not null;column:file_url" json:"-"`
	PreviewURL  *string                     `gorm:"type:text;column:preview_url" json:"previewUrl,omitempty"`
	IsPremium   bool                        `gorm:"not null;default:false;column:is_premium" json:"isPremium"`
	Popularity  int                         `gorm:"not null;default:0;index" json:"popularity"`
	Downloads   int                         `gorm:"not null;default:0" json:"downloads"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
}

// TableName overrides the default table name.
func (Template) TableName() string { return "templates" }

// CreateInput carries a new template.
type CreateInput struct {
	Title       string
	Description *string
	Category    string
	FileURL     string
	PreviewURL  *string
	IsPremium   bool
	Popularity  int
	Tags        []string
}

// UpdateInput captures mutable template fields.
type UpdateInput struct {
	Title    *string
	Category *string
	FileURL  *string

	DescriptionProvided bool
	Description         *string

	PreviewURLProvided bool
	PreviewURL         *string

	IsPremium  *bool
	Popularity *int
	Tags       *[]string
}

// FilterCategory normalizes a category used as a list filter. Values that
// can never match a stored category are passed through lowercased.
func FilterCategory(category string) string {
	if normalized, err := validation.NormalizeCategory(category); err == nil {
		return normalized
	}
	return strings.ToLower(strings.TrimSpace(category))
}

// List returns templates ordered by popularity, optionally within one category.
func List(db *gorm.DB, category string) ([]Template, error) {
	query := db.Model(&Template{})
	if filter := FilterCategory(category); filter != "" {
		query = query.Where("category = ?", filter)
	}

	var items []Template
	err := query.Order("popularity DESC").Order("created_at DESC").Find(&items).Error
	return items, err
}

// Categories returns the distinct categories in use.
func Categories(db *gorm.DB) ([]string, error) {
	var categories []string
	err := db.Model(&Template{}).Distinct().Order("category ASC").Pluck("category", &categories).Error
	return categories, err
}

// Get retrieves a template by ID.
func Get(db *gorm.DB, id uuid.UUID) (Template, error) {
	var item Template
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return item, ErrTemplateNotFound
		}
		return item, err
	}
	return item, nil
}

// Create inserts a template.
func Create(db *gorm.DB, input CreateInput) (Template, error) {
	category, err := normalizeCategory(input.Category)
	if err != nil {
		return Template{}, err
	}

	item := Template{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Category:    category,
		FileURL:     strings.TrimSpace(input.FileURL),
		PreviewURL:  input.PreviewURL,
		IsPremium:   input.IsPremium,
		Popularity:  input.Popularity,
		Tags:        datatypes.NewJSONSlice(cleanTags(input.Tags)),
	}

	if err := validate(item); err != nil {
		return Template{}, err
	}

	if err := db.Create(&item).Error; err != nil {
		return Template{}, err
	}
	return item, nil
}

// Update applies input and returns the template with its previous category.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Template, string, error) {
	item, err := Get(db, id)
	if err != nil {
		return Template{}, "", err
	}
	previousCategory := item.Category

	if input.Title != nil {
		item.Title = strings.TrimSpace(*input.Title)
	}
	if input.Category != nil {
		category, err := normalizeCategory(*input.Category)
		if err != nil {
			return Template{}, "", err
		}
		item.Category = category
	}
	if input.FileURL != nil {
		item.FileURL = strings.TrimSpace(*input.FileURL)
	}
	if input.DescriptionProvided {
		item.Description = input.Description
	}
	if input.PreviewURLProvided {
		item.PreviewURL = input.PreviewURL
	}
	if input.IsPremium != nil {
		item.IsPremium = *input.IsPremium
	}
	if input.Popularity != nil {
		item.Popularity = *input.Popularity
	}
	if input.Tags != nil {
		item.Tags = datatypes.NewJSONSlice(cleanTags(*input.Tags))
	}

	if err := validate(item); err != nil {
		return Template{}, "", err
	}

	if err := db.Model(&item).Select(
		"title", "description", "category", "file_url", "preview_url",
		"is_premium", "popularity", "tags", "updated_at",
	).Updates(&item).Error; err != nil {
		return Template{}, "", err
	}

	return item, previousCategory, nil
}

// Delete removes a template and returns what was removed.
func Delete(db *gorm.DB, id uuid.UUID) (Template, error) {
	item, err := Get(db, id)
	if err != nil {
		return Template{}, err
	}
	if err := db.Delete(&Template{}, "id = ?", id).Error; err != nil {
		return Template{}, err
	}
	return item, nil
}

// RecordDownload increments the download counter atomically.
func RecordDownload(db *gorm.DB, id uuid.UUID) error {
	result := db.Model(&Template{}).
		Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func normalizeCategory(category string) (string, error) {
	if strings.TrimSpace(category) == "" {
		return "", ErrCategoryRequired
	}
	return validation.NormalizeCategory(category)
}

func validate(item Template) error {
	switch {
	case item.Title == "":
		return ErrTitleRequired
	case item.Category == "":
		return ErrCategoryRequired
	case item.FileURL == "":
		return ErrFileURLRequired
	case item.Popularity < 0:
		return ErrInvalidPopularity
	}
	return nil
}

func cleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

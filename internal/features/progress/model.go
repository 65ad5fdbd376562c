package progress

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// LessonProgress records whether a user completed a lesson.
type LessonProgress struct {
	types.BaseModel

	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_progress_user_lesson;column:user_id" json:"userId"`
	LessonID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_progress_user_lesson;column:lesson_id" json:"lessonId"`
	ModuleID    uuid.UUID  `gorm:"type:uuid;not null;index;column:module_id" json:"moduleId"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`

	User   *user.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Lesson *lesson.Lesson `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE" json:"-"`
	Module *module.Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name.
func (LessonProgress) TableName() string { return "lesson_progress" }

// ModuleProgress is the per-user rollup recomputed on every lesson write.
type ModuleProgress struct {
	types.BaseModel

	UserID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_module_progress_user_module;column:user_id" json:"userId"`
	ModuleID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_module_progress_user_module;column:module_id" json:"moduleId"`
	CompletedLessons int64      `gorm:"column:completed_lessons;not null;default:0" json:"completedLessons"`
	Percent          float64    `gorm:"not null;default:0" json:"percent"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`

	User   *user.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Module *module.Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name.
func (ModuleProgress) TableName() string { return "module_progress" }

// LessonStatus is the lesson progress view returned to clients.
type LessonStatus struct {
	LessonID    uuid.UUID  `json:"lessonId"`
	ModuleID    uuid.UUID  `json:"moduleId"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
}

// ModuleStatus is the module progress view returned to clients.
type ModuleStatus struct {
	ModuleID           uuid.UUID   `json:"moduleId"`
	Title              string      `json:"title,omitempty"`
	Percent            float64     `json:"percent"`
	CompletedLessons   int64       `json:"completedLessons"`
	LessonsCount       int64       `json:"lessonsCount"`
	CompletedLessonIDs []uuid.UUID `json:"completedLessonIds"`
	CompletedAt        *time.Time  `json:"completedAt"`
}

// Summary aggregates the caller's progress over every visible module.
type Summary struct {
	Modules          []ModuleStatus `json:"modules"`
	CompletedLessons int64          `json:"completedLessons"`
	TotalLessons     int64          `json:"totalLessons"`
	Percent          float64        `json:"percent"`
	CompletedModules int            `json:"completedModules"`
}

// Percent returns completed/total as a percentage capped at 100.
// A module without lessons is 0% complete.
func Percent(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	value := float64(completed) / float64(total) * 100
	if value > 100 {
		value = 100
	}
	return math.Round(value*100) / 100
}

// GetLessonStatus returns the caller's status for a visible lesson.
func GetLessonStatus(db *gorm.DB, userID, lessonID uuid.UUID, isAdmin bool) (LessonStatus, error) {
	l, err := lesson.GetVisible(db, lessonID, isAdmin)
	if err != nil {
		if errors.Is(err, lesson.ErrLessonNotFound) {
			return LessonStatus{}, ErrLessonNotFound
		}
		return LessonStatus{}, err
	}

	status := LessonStatus{LessonID: l.ID, ModuleID: l.ModuleID}

	var record LessonProgress
	err = db.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return status, nil
	}
	if err != nil {
		return status, err
	}

	status.Completed = record.Completed
	status.CompletedAt = record.CompletedAt
	return status, nil
}

// SetLessonCompleted upserts the lesson row and recomputes the module rollup
// in one transaction. Repeating a call is idempotent; the first completion
// time is kept.
func SetLessonCompleted(db *gorm.DB, userID, lessonID uuid.UUID, completed bool, isAdmin bool, now time.Time) (LessonStatus, ModuleStatus, error) {
	var (
		lessonStatus LessonStatus
		moduleStatus ModuleStatus
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		l, err := lesson.GetVisible(tx, lessonID, isAdmin)
		if err != nil {
			if errors.Is(err, lesson.ErrLessonNotFound) {
				return ErrLessonNotFound
			}
			return err
		}

		if _, err := lockModuleRollup(tx, userID, l.ModuleID); err != nil {
			return err
		}

		record := LessonProgress{
			UserID:    userID,
			LessonID:  l.ID,
			ModuleID:  l.ModuleID,
			Completed: completed,
		}
		if completed {
			record.CompletedAt = &now
		}

		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "module_id"}, Value: gorm.Expr("excluded.module_id")},
				{Column: clause.Column{Name: "completed"}, Value: gorm.Expr("excluded.completed")},
				{Column: clause.Column{Name: "completed_at"}, Value: gorm.Expr(
					"CASE WHEN excluded.completed THEN COALESCE(lesson_progress.completed_at, excluded.completed_at) ELSE NULL END")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).Create(&record).Error
		if err != nil {
			return err
		}

		if err := recomputeModule(tx, userID, l.ModuleID, now); err != nil {
			return err
		}

		if lessonStatus, err = GetLessonStatus(tx, userID, lessonID, true); err != nil {
			return err
		}
		moduleStatus, err = GetModuleStatus(tx, userID, l.ModuleID, true)
		return err
	})

	return lessonStatus, moduleStatus, err
}

// GetModuleStatus computes the caller's progress through a visible module.
func GetModuleStatus(db *gorm.DB, userID, moduleID uuid.UUID, isAdmin bool) (ModuleStatus, error) {
	m, err := module.GetVisible(db, moduleID, isAdmin)
	if err != nil {
		if errors.Is(err, module.ErrModuleNotFound) {
			return ModuleStatus{}, ErrModuleNotFound
		}
		return ModuleStatus{}, err
	}

	ids, err := completedLessonIDs(db, userID, moduleID)
	if err != nil {
		return ModuleStatus{}, err
	}

	status := ModuleStatus{
		ModuleID:           m.ID,
		Title:              m.Title,
		CompletedLessons:   int64(len(ids)),
		LessonsCount:       m.LessonsCount,
		CompletedLessonIDs: ids,
	}
	status.Percent = Percent(status.CompletedLessons, status.LessonsCount)

	var rollup ModuleProgress
	err = db.Where("user_id = ? AND module_id = ?", userID, moduleID).First(&rollup).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return status, err
	}
	if err == nil {
		status.CompletedAt = rollup.CompletedAt
	}

	return status, nil
}

// GetSummary returns progress across every module visible to the caller.
func GetSummary(db *gorm.DB, userID uuid.UUID, isAdmin bool) (Summary, error) {
	modules, err := module.List(db, module.ListFilters{PublishedOnly: !isAdmin})
	if err != nil {
		return Summary{}, err
	}

	var rows []struct {
		ModuleID uuid.UUID
		LessonID uuid.UUID
	}
	if err := completedQuery(db, userID).
		Select("lesson_progress.module_id AS module_id, lesson_progress.lesson_id AS lesson_id").
		Order(`lessons."order" ASC`).
		Scan(&rows).Error; err != nil {
		return Summary{}, err
	}

	idsByModule := make(map[uuid.UUID][]uuid.UUID)
	for _, row := range rows {
		idsByModule[row.ModuleID] = append(idsByModule[row.ModuleID], row.LessonID)
	}

	var rollups []ModuleProgress
	if err := db.Where("user_id = ?", userID).Find(&rollups).Error; err != nil {
		return Summary{}, err
	}
	completedAt := make(map[uuid.UUID]*time.Time, len(rollups))
	for _, r := range rollups {
		completedAt[r.ModuleID] = r.CompletedAt
	}

	summary := Summary{Modules: make([]ModuleStatus, 0, len(modules))}
	for _, m := range modules {
		ids := idsByModule[m.ID]
		if ids == nil {
			ids = []uuid.UUID{}
		}
		status := ModuleStatus{
			ModuleID:           m.ID,
			Title:              m.Title,
			CompletedLessons:   int64(len(ids)),
			LessonsCount:       m.LessonsCount,
			CompletedLessonIDs: ids,
			CompletedAt:        completedAt[m.ID],
		}
		status.Percent = Percent(status.CompletedLessons, status.LessonsCount)

		summary.Modules = append(summary.Modules, status)
		summary.CompletedLessons += status.CompletedLessons
		summary.TotalLessons += status.LessonsCount
		if status.LessonsCount > 0 && status.Percent >= 100 {
			summary.CompletedModules++
		}
	}
	summary.Percent = Percent(summary.CompletedLessons, summary.TotalLessons)

	return summary, nil
}

// recomputeModule rewrites the module rollup from a COUNT so concurrent
// writers converge on the same value.
// lockModuleRollup makes sure the user's module_progress row exists and
// holds it FOR UPDATE until the transaction ends. Concurrent completions in
// the same module queue here, so each COUNT sees the rows committed before it.
func lockModuleRollup(tx *gorm.DB, userID, moduleID uuid.UUID) (ModuleProgress, error) {
	seed := ModuleProgress{UserID: userID, ModuleID: moduleID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return ModuleProgress{}, err
	}

	var locked ModuleProgress
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		First(&locked).Error
	return locked, err
}

func recomputeModule(tx *gorm.DB, userID, moduleID uuid.UUID, now time.Time) error {
	var completed int64
	if err := completedQuery(tx, userID).
		Where("lesson_progress.module_id = ?", moduleID).
		Count(&completed).Error; err != nil {
		return err
	}

	total, err := module.CountPublishedLessons(tx, moduleID)
	if err != nil {
		return err
	}

	rollup := ModuleProgress{
		UserID:           userID,
		ModuleID:         moduleID,
		CompletedLessons: completed,
		Percent:          Percent(completed, total),
	}
	if total > 0 && rollup.Percent >= 100 {
		rollup.CompletedAt = &now
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "completed_lessons"}, Value: gorm.Expr("excluded.completed_lessons")},
			{Column: clause.Column{Name: "percent"}, Value: gorm.Expr("excluded.percent")},
			{Column: clause.Column{Name: "completed_at"}, Value: gorm.Expr("COALESCE(module_progress.completed_at, excluded.completed_at)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&rollup).Error
}

// completedQuery selects the user's completed rows for published lessons.
func completedQuery(db *gorm.DB, userID uuid.UUID) *gorm.DB {
	return db.Model(&LessonProgress{}).
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Where("lesson_progress.user_id = ? AND lesson_progress.completed = ? AND lessons.is_published = ?", userID, true, true)
}

func completedLessonIDs(db *gorm.DB, userID, moduleID uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	err := completedQuery(db, userID).
		Where("lesson_progress.module_id = ?", moduleID).
		Order(`lessons."order" ASC`).
		Pluck("lesson_progress.lesson_id", &ids).Error
	return ids, err
}

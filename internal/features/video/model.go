package video

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

// CompletionThreshold is the watched percentage that completes a lesson.
const CompletionThreshold = 90

// VideoProgress tracks how far a user has watched a video.
type VideoProgress struct {
	types.BaseModel

	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_video_progress_user_video;column:user_id" json:"userId"`
	VideoID     string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_video_progress_user_video;column:video_id" json:"videoId"`
	LessonID    *uuid.UUID `gorm:"type:uuid;column:lesson_id;index" json:"lessonId,omitempty"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	LastWatched time.Time  `gorm:"column:last_watched;not null" json:"lastWatched"`

	User   *user.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Lesson *lesson.Lesson `gorm:"foreignKey:LessonID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName overrides the default table name.
func (VideoProgress) TableName() string { return "video_progress" }

// ClampProgress limits a watched percentage to 0..100.
func ClampProgress(value int) int {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

// ProgressPercent converts a client supplied percentage into 0..100,
// clamping before the integer conversion so huge values cannot wrap.
func ProgressPercent(value float64) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidProgress
	}
	return int(math.Min(math.Max(value, 0), 100)), nil
}

// Get returns the user's progress on videoID, or a zero record when none exists.
func Get(db *gorm.DB, userID uuid.UUID, videoID string) (VideoProgress, error) {
	var record VideoProgress
	err := db.Where("user_id = ? AND video_id = ?", userID, videoID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VideoProgress{UserID: userID, VideoID: videoID}, nil
	}
	return record, err
}

// Upsert records the latest watched percentage for (userID, videoID).
func Upsert(db *gorm.DB, userID uuid.UUID, videoID string, lessonID *uuid.UUID, progress int, now time.Time) (VideoProgress, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return VideoProgress{}, ErrVideoIDRequired
	}

	record := VideoProgress{
		UserID:      userID,
		VideoID:     videoID,
		LessonID:    lessonID,
		Progress:    ClampProgress(progress),
		LastWatched: now,
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "progress"}, Value: gorm.Expr("excluded.progress")},
			{Column: clause.Column{Name: "last_watched"}, Value: gorm.Expr("excluded.last_watched")},
			{Column: clause.Column{Name: "lesson_id"}, Value: gorm.Expr("COALESCE(excluded.lesson_id, video_progress.lesson_id)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&record).Error
	if err != nil {
		return VideoProgress{}, err
	}

	return Get(db, userID, videoID)
}

package video

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/progress"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/bunny"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/metrics"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

// Handler processes video HTTP requests.
type Handler struct {
	db       *gorm.DB
	cache    cache.Client
	signer   *Signer
	delivery *bunny.DeliverySigner
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler constructs a video handler instance. delivery may be unconfigured,
// in which case streams redirect to the lesson's videoUrl.
func NewHandler(db *gorm.DB, cacheClient cache.Client, signer *Signer, delivery *bunny.DeliverySigner, logger *slog.Logger) *Handler {
	return &Handler{
		db:       db,
		cache:    cacheClient,
		signer:   signer,
		delivery: delivery,
		logger:   logger,
		now:      time.Now,
	}
}

// SecureURL issues a short-lived stream URL for subscribers and admins.
func (h *Handler) SecureURL(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	if !current.HasContentAccess(h.now()) {
		metrics.RecordVideoToken("sign", "forbidden")
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, "Active subscription required.", ErrSubscriptionNeeded)
		return
	}

	signed, err := h.signer.Sign(c.Param("videoId"), current.ID.String())
	if err != nil {
		if errors.Is(err, ErrVideoIDRequired) {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to sign video url", err)
		return
	}

	metrics.RecordVideoToken("sign", "success")
	response.SuccessNoCache(c, http.StatusOK, signed, "")
}

// Stream verifies a signed URL and redirects to the delivery source.
func (h *Handler) Stream(c *gin.Context) {
	videoID := c.Param("videoId")

	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		metrics.RecordVideoToken("verify", "rejected")
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, "Access denied.", ErrInvalidVideoToken)
		return
	}

	claims, err := h.signer.Verify(VerifyInput{
		VideoID:   videoID,
		UserID:    c.Query("userId"),
		Token:     c.Query("token"),
		Expires:   expires,
		SessionID: c.Query("sid"),
		Referer:   c.GetHeader("Referer"),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		metrics.RecordVideoToken("verify", "rejected")
		if IsAccessDenied(err) {
			response.ErrorWithLog(h.logger, c, http.StatusForbidden, "Access denied.", err)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to verify video token", err)
		return
	}

	ctx := c.Request.Context()

	// Access may have lapsed since the URL was issued.
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, "Access denied.", ErrTokenMismatch)
		return
	}
	owner, err := user.Get(h.db.WithContext(ctx), userID)
	if err != nil || !owner.HasContentAccess(h.now()) {
		metrics.RecordVideoToken("verify", "forbidden")
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, "Active subscription required.", ErrSubscriptionNeeded)
		return
	}

	target, err := h.resolveSource(c, videoID)
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			response.ErrorWithLog(h.logger, c, http.StatusNotFound, "Video not found.", err)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to resolve video", err)
		return
	}

	metrics.RecordVideoToken("verify", "success")
	c.Header("Cache-Control", "no-store")
	c.Header("Referrer-Policy", "no-referrer")
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) resolveSource(c *gin.Context, videoID string) (string, error) {
	if h.delivery.Configured() {
		return h.delivery.SignedPlaylistURL(videoID)
	}

	l, err := lesson.FindByVideoID(h.db.WithContext(c.Request.Context()), videoID)
	if err != nil {
		if errors.Is(err, lesson.ErrLessonNotFound) {
			return "", ErrSourceUnavailable
		}
		return "", err
	}
	if l.VideoURL == nil || strings.TrimSpace(*l.VideoURL) == "" {
		return "", ErrSourceUnavailable
	}
	return *l.VideoURL, nil
}

// MarkWatched stores watch progress and completes the lesson past the threshold.
func (h *Handler) MarkWatched(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	var req struct {
		Progress *float64 `json:"progress" binding:"required"`
		LessonID *string  `json:"lessonId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "progress is required", err)
		return
	}

	ctx := c.Request.Context()
	db := h.db.WithContext(ctx)
	videoID := c.Param("videoId")
	now := h.now()

	percent, err := ProgressPercent(*req.Progress)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
		return
	}

	lessonRef, err := h.resolveLesson(db, videoID, req.LessonID, current.IsAdmin())
	if err != nil {
		if errors.Is(err, errInvalidLessonID) || errors.Is(err, lesson.ErrLessonNotFound) {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson id", err)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to load lesson", err)
		return
	}

	var lessonID *uuid.UUID
	if lessonRef != nil {
		lessonID = &lessonRef.ID
	}

	record, err := Upsert(db, current.ID, videoID, lessonID, percent, now)
	if err != nil {
		if errors.Is(err, ErrVideoIDRequired) {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to save video progress", err)
		return
	}

	lessonCompleted := false
	if lessonRef != nil && record.Progress >= CompletionThreshold {
		_, _, err := progress.SetLessonCompleted(db, current.ID, lessonRef.ID, true, current.IsAdmin(), now)
		switch {
		case errors.Is(err, progress.ErrLessonNotFound):
			// lesson was hidden after it was resolved
		case err != nil:
			response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to complete lesson", err)
			return
		default:
			progress.InvalidateUser(ctx, h.cache, h.logger, current.ID, lessonRef.ID, lessonRef.ModuleID)
			lessonCompleted = true
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"videoProgress":   record,
		"lessonCompleted": lessonCompleted,
	}, "Progress saved.", nil)
}

var errInvalidLessonID = errors.New("lesson id must be a uuid")

// resolveLesson returns the lesson a watch event belongs to: the explicit
// lessonId when given, otherwise the visible lesson carrying videoID, if any.
func (h *Handler) resolveLesson(db *gorm.DB, videoID string, rawLessonID *string, isAdmin bool) (*lesson.Lesson, error) {
	if rawLessonID != nil && strings.TrimSpace(*rawLessonID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*rawLessonID))
		if err != nil {
			return nil, errInvalidLessonID
		}
		l, err := lesson.GetVisible(db, id, isAdmin)
		if err != nil {
			return nil, err
		}
		return &l, nil
	}

	found, err := lesson.FindByVideoID(db, videoID)
	if err != nil {
		if errors.Is(err, lesson.ErrLessonNotFound) {
			return nil, nil
		}
		return nil, err
	}

	l, err := lesson.GetVisible(db, found.ID, isAdmin)
	if err != nil {
		if errors.Is(err, lesson.ErrLessonNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// Progress returns the caller's watch progress for a video.
func (h *Handler) Progress(c *gin.Context) {
	current, ok := user.FromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	record, err := Get(h.db.WithContext(c.Request.Context()), current.ID, c.Param("videoId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to load video progress", err)
		return
	}

	response.Success(c, http.StatusOK, record, "", nil)
}

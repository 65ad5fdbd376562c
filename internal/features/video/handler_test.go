package video

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/progress"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/testutil"
	"github.com/mo-amir99/wb-simple-server-go/pkg/bunny"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

type env struct {
	db     *gorm.DB
	caller *user.User
	router *gin.Engine
}

func newEnv(t *testing.T, caller user.User) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t,
		&user.User{}, &module.Module{}, &lesson.Lesson{},
		&progress.LessonProgress{}, &progress.ModuleProgress{}, &VideoProgress{},
	)
	if err := db.Create(&caller).Error; err != nil {
		t.Fatal(err)
	}

	signer := NewSigner(SignerConfig{
		Secret:          "video-secret",
		PublicBaseURL:   "http://localhost:3000",
		AllowedReferers: []string{"web.telegram.org"},
	}, logger.Discard())

	handler := NewHandler(db, cache.NewMemoryCache(), signer, bunny.NewDeliverySigner("", "", 0), logger.Discard())

	current := caller
	as := []gin.HandlerFunc{func(c *gin.Context) { user.SetContext(c, &current) }}

	router := gin.New()
	RegisterRoutes(router.Group("/api"), handler, as)

	return &env{db: db, caller: &current, router: router}
}

func (e *env) do(t *testing.T, method, target string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func subscriber() user.User {
	end := time.Now().Add(30 * 24 * time.Hour)
	return user.User{TelegramID: "100", Role: types.RoleUser, HasActiveSubscription: true, SubscriptionEndDate: &end}
}

func secureURL(t *testing.T, e *env, videoID string) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/videos/secure-url/"+videoID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("secure-url status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("secure-url must not be cacheable")
	}
	var body struct {
		Data struct {
			SecureURL string `json:"secureUrl"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	return body.Data.SecureURL
}

func seedLesson(t *testing.T, db *gorm.DB, videoID, videoURL string) lesson.Lesson {
	t.Helper()
	m, err := module.Create(db, module.CreateInput{Title: "Basics", IsPublished: true})
	if err != nil {
		t.Fatal(err)
	}
	l, err := lesson.Create(db, lesson.CreateInput{
		ModuleID:    m.ID,
		Title:       "Intro",
		VideoID:     &videoID,
		VideoURL:    &videoURL,
		IsPublished: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestSecureURLRequiresSubscription(t *testing.T) {
	e := newEnv(t, user.User{TelegramID: "100", Role: types.RoleUser})

	rec := e.do(t, http.MethodGet, "/api/videos/secure-url/vid-1", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestSecureURLAllowsAdminWithoutSubscription(t *testing.T) {
	e := newEnv(t, user.User{TelegramID: "100", Role: types.RoleAdmin})

	if u := secureURL(t, e, "vid-1"); u == "" {
		t.Fatal("expected a secure url")
	}
}

func TestStreamRedirectsToLessonVideo(t *testing.T) {
	e := newEnv(t, subscriber())
	seedLesson(t, e.db, "vid-1", "https://cdn.example.com/vid-1.m3u8")

	parsed, err := url.Parse(secureURL(t, e, "vid-1"))
	if err != nil {
		t.Fatal(err)
	}

	header := http.Header{}
	header.Set("Referer", "https://web.telegram.org/a/")
	header.Set("User-Agent", "Mozilla/5.0 Telegram")

	rec := e.do(t, http.MethodGet, parsed.RequestURI(), nil, header)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "https://cdn.example.com/vid-1.m3u8" {
		t.Fatalf("Location = %q", loc)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("redirect must not be cacheable")
	}
}

func TestStreamRejectsTamperedRequests(t *testing.T) {
	e := newEnv(t, subscriber())
	seedLesson(t, e.db, "vid-1", "https://cdn.example.com/vid-1.m3u8")

	parsed, err := url.Parse(secureURL(t, e, "vid-1"))
	if err != nil {
		t.Fatal(err)
	}

	otherVideo := *parsed
	otherVideo.Path = "/api/videos/stream/vid-2"

	noExpiry := *parsed
	q := noExpiry.Query()
	q.Del("expires")
	noExpiry.RawQuery = q.Encode()

	cases := map[string]struct {
		target string
		agent  string
	}{
		"other video": {target: otherVideo.RequestURI(), agent: "Mozilla/5.0"},
		"no expiry":   {target: noExpiry.RequestURI(), agent: "Mozilla/5.0"},
		"wget":        {target: parsed.RequestURI(), agent: "Wget/1.21"},
	}

	for name, tc := range cases {
		header := http.Header{}
		header.Set("User-Agent", tc.agent)
		rec := e.do(t, http.MethodGet, tc.target, nil, header)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", name, rec.Code)
		}
	}
}

func TestStreamWithoutSourceIsNotFound(t *testing.T) {
	e := newEnv(t, subscriber())

	parsed, err := url.Parse(secureURL(t, e, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0")

	rec := e.do(t, http.MethodGet, parsed.RequestURI(), nil, header)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMarkWatchedCompletesLessonPastThreshold(t *testing.T) {
	e := newEnv(t, subscriber())
	l := seedLesson(t, e.db, "vid-1", "https://cdn.example.com/vid-1.m3u8")

	rec := e.do(t, http.MethodPost, "/api/videos/mark-watched/vid-1", gin.H{"progress": 40}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	status, err := progress.GetLessonStatus(e.db, e.caller.ID, l.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if status.Completed {
		t.Fatal("lesson should not complete at 40%")
	}

	rec = e.do(t, http.MethodPost, "/api/videos/mark-watched/vid-1", gin.H{"progress": 120}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	record, err := Get(e.db, e.caller.ID, "vid-1")
	if err != nil {
		t.Fatal(err)
	}
	if record.Progress != 100 {
		t.Fatalf("progress = %d, want clamped 100", record.Progress)
	}
	if record.LessonID == nil || *record.LessonID != l.ID {
		t.Fatalf("lesson id not linked: %v", record.LessonID)
	}

	status, err = progress.GetLessonStatus(e.db, e.caller.ID, l.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Completed {
		t.Fatal("lesson should be completed past the threshold")
	}

	var count int64
	if err := e.db.Model(&VideoProgress{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("video progress rows = %d, want 1", count)
	}
}

func TestProgressDefaultsToZero(t *testing.T) {
	e := newEnv(t, subscriber())

	rec := e.do(t, http.MethodGet, "/api/videos/progress/unknown", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data VideoProgress `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Progress != 0 || body.Data.VideoID != "unknown" {
		t.Fatalf("unexpected record %+v", body.Data)
	}
}

func TestMarkWatchedClampsOutOfRangeProgress(t *testing.T) {
	e := newEnv(t, subscriber())

	for _, tt := range []struct {
		progress float64
		want     int
	}{
		{progress: 1e20, want: 100},
		{progress: -1e20, want: 0},
		{progress: 55.9, want: 55},
	} {
		rec := e.do(t, http.MethodPost, "/api/videos/mark-watched/vid-loose", gin.H{"progress": tt.progress}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("progress %v: status = %d body=%s", tt.progress, rec.Code, rec.Body.String())
		}
		record, err := Get(e.db, e.caller.ID, "vid-loose")
		if err != nil {
			t.Fatal(err)
		}
		if record.Progress != tt.want {
			t.Fatalf("progress %v stored as %d, want %d", tt.progress, record.Progress, tt.want)
		}
	}
}

func TestMarkWatchedOnHiddenLessonOnlySavesProgress(t *testing.T) {
	e := newEnv(t, subscriber())
	m, err := module.Create(e.db, module.CreateInput{Title: "Basics", IsPublished: true})
	if err != nil {
		t.Fatal(err)
	}
	videoID := "vid-draft"
	draft, err := lesson.Create(e.db, lesson.CreateInput{ModuleID: m.ID, Title: "Draft", VideoID: &videoID})
	if err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/api/videos/mark-watched/"+videoID, gin.H{"progress": 95}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data struct {
			LessonCompleted bool          `json:"lessonCompleted"`
			VideoProgress   VideoProgress `json:"videoProgress"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.LessonCompleted || body.Data.VideoProgress.Progress != 95 {
		t.Fatalf("unexpected response: %+v", body.Data)
	}

	var completed int64
	e.db.Model(&progress.LessonProgress{}).Where("lesson_id = ?", draft.ID).Count(&completed)
	if completed != 0 {
		t.Fatal("hidden lesson must not be completed")
	}

	explicit := gin.H{"progress": 95, "lessonId": draft.ID.String()}
	if rec := e.do(t, http.MethodPost, "/api/videos/mark-watched/"+videoID, explicit, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("explicit hidden lesson status = %d, want 400", rec.Code)
	}
}

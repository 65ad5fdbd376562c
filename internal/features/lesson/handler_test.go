package lesson

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/testutil"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

type env struct {
	db     *gorm.DB
	cache  *cache.MemoryCache
	caller *user.User
	router *gin.Engine
}

func newEnv(t *testing.T, role types.Role) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t, &module.Module{}, &Lesson{})
	mem := cache.NewMemoryCache()
	log := logger.Discard()

	caller := &user.User{TelegramID: "1", Role: role}
	as := []gin.HandlerFunc{func(c *gin.Context) { user.SetContext(c, caller) }}

	router := gin.New()
	api := router.Group("/api")
	RegisterRoutes(api, NewHandler(db, mem, log), as, as)
	module.RegisterRoutes(api, module.NewHandler(db, mem, log), as, as)

	return &env{db: db, cache: mem, caller: caller, router: router}
}

func (e *env) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func mustModule(t *testing.T, db *gorm.DB, title string, published bool) module.Module {
	t.Helper()
	m, err := module.Create(db, module.CreateInput{Title: title, IsPublished: published})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func mustLesson(t *testing.T, db *gorm.DB, m module.Module, title string, order int, published bool) Lesson {
	t.Helper()
	l, err := Create(db, CreateInput{ModuleID: m.ID, Title: title, Order: &order, IsPublished: published})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestUnpublishedModuleLessonsAreNotFoundForMembers(t *testing.T) {
	e := newEnv(t, types.RoleUser)
	hidden := mustModule(t, e.db, "Draft", false)
	mustLesson(t, e.db, hidden, "Intro", 1, true)

	rec := e.request(t, http.MethodGet, "/api/lessons/module/"+hidden.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAdminSeesUnpublishedLessons(t *testing.T) {
	e := newEnv(t, types.RoleAdmin)
	hidden := mustModule(t, e.db, "Draft", false)
	mustLesson(t, e.db, hidden, "Intro", 1, false)

	rec := e.request(t, http.MethodGet, "/api/lessons/module/"+hidden.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Data []Lesson `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("expected 1 lesson, got %d", len(body.Data))
	}
}

func TestLessonVisibilityRules(t *testing.T) {
	e := newEnv(t, types.RoleUser)
	live := mustModule(t, e.db, "Live", true)
	draft := mustModule(t, e.db, "Draft", false)

	visible := mustLesson(t, e.db, live, "Visible", 1, true)
	unpublished := mustLesson(t, e.db, live, "Hidden", 2, false)
	inDraft := mustLesson(t, e.db, draft, "In draft", 1, true)

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"published lesson", visible.ID.String(), http.StatusOK},
		{"unpublished lesson", unpublished.ID.String(), http.StatusNotFound},
		{"lesson in unpublished module", inDraft.ID.String(), http.StatusNotFound},
		{"bad id", "nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.request(t, http.MethodGet, "/api/lessons/"+tt.id, nil); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec := e.request(t, http.MethodGet, "/api/lessons/module/"+live.ID.String(), nil)
	var body struct {
		Data []Lesson `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Data) != 1 || body.Data[0].ID != visible.ID {
		t.Fatalf("members should only see published lessons, got %+v", body.Data)
	}
}

func TestCreateLessonOrderCollisionConflicts(t *testing.T) {
	e := newEnv(t, types.RoleAdmin)
	m := mustModule(t, e.db, "Live", true)
	mustLesson(t, e.db, m, "First", 1, true)

	rec := e.request(t, http.MethodPost, "/api/lessons", map[string]interface{}{
		"moduleId": m.ID.String(),
		"title":    "Second",
		"order":    1,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = e.request(t, http.MethodPost, "/api/lessons", map[string]interface{}{
		"moduleId": m.ID.String(),
		"title":    "Second",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data Lesson `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.Order != 2 {
		t.Fatalf("expected appended order 2, got %d", body.Data.Order)
	}
}

func TestUpdateLessonInvalidatesCachedReads(t *testing.T) {
	e := newEnv(t, types.RoleAdmin)
	m := mustModule(t, e.db, "Live", true)
	l := mustLesson(t, e.db, m, "Old title", 1, true)

	ctx := t.Context()
	for _, key := range cache.LessonWriteKeys(l.ID, m.ID) {
		if err := e.cache.Set(ctx, key, "stale", 0); err != nil {
			t.Fatal(err)
		}
	}

	rec := e.request(t, http.MethodPut, "/api/lessons/"+l.ID.String(), map[string]interface{}{"title": "New title"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	for _, key := range cache.LessonWriteKeys(l.ID, m.ID) {
		if n, _ := e.cache.Exists(ctx, key); n != 0 {
			t.Errorf("key %q survived the write", key)
		}
	}
}

func TestUnpublishingModuleHidesCachedLessons(t *testing.T) {
	e := newEnv(t, types.RoleUser)
	m := mustModule(t, e.db, "Live", true)
	l := mustLesson(t, e.db, m, "Intro", 1, true)

	if rec := e.request(t, http.MethodGet, "/api/lessons/"+l.ID.String(), nil); rec.Code != http.StatusOK {
		t.Fatalf("warm read status = %d", rec.Code)
	}
	if n, _ := e.cache.Exists(t.Context(), cache.LessonKey(l.ID)); n == 0 {
		t.Fatal("expected the lesson read to be cached")
	}

	e.caller.Role = types.RoleAdmin
	rec := e.request(t, http.MethodPut, "/api/modules/"+m.ID.String(), map[string]interface{}{"isPublished": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("unpublish status = %d body=%s", rec.Code, rec.Body.String())
	}

	e.caller.Role = types.RoleUser
	if rec := e.request(t, http.MethodGet, "/api/lessons/"+l.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("lesson of unpublished module status = %d, want 404", rec.Code)
	}
}

func TestDeleteModuleCascadesToLessons(t *testing.T) {
	e := newEnv(t, types.RoleAdmin)
	m := mustModule(t, e.db, "Live", true)
	mustLesson(t, e.db, m, "One", 1, true)
	mustLesson(t, e.db, m, "Two", 2, true)

	rec := e.request(t, http.MethodDelete, "/api/modules/"+m.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var count int64
	e.db.Model(&Lesson{}).Where("module_id = ?", m.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected lessons to be deleted, %d remain", count)
	}

	if rec := e.request(t, http.MethodDelete, "/api/modules/"+m.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestModuleListCountsPublishedLessons(t *testing.T) {
	e := newEnv(t, types.RoleUser)
	m := mustModule(t, e.db, "Live", true)
	mustModule(t, e.db, "Draft", false)
	mustLesson(t, e.db, m, "One", 1, true)
	mustLesson(t, e.db, m, "Two", 2, false)

	rec := e.request(t, http.MethodGet, "/api/modules?includeLessons=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Data []module.Module `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("members should see 1 module, got %d", len(body.Data))
	}
	if body.Data[0].LessonsCount != 1 || len(body.Data[0].Lessons) != 1 {
		t.Fatalf("unexpected lessons: count=%d lessons=%d", body.Data[0].LessonsCount, len(body.Data[0].Lessons))
	}

	if n, _ := e.cache.Exists(t.Context(), cache.KeyModulesListWithLessons); n != 1 {
		t.Fatal("expected member list to be cached")
	}
}

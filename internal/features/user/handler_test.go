package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/testutil"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

func newAdminRouter(t *testing.T) (*gorm.DB, *User, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t, &User{})
	admin := User{TelegramID: "1", Username: "root", Role: types.RoleAdmin}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatal(err)
	}

	as := []gin.HandlerFunc{func(c *gin.Context) { SetContext(c, &admin) }}
	router := gin.New()
	RegisterRoutes(router.Group("/api"), NewHandler(db, logger.Discard()), as)
	return db, &admin, router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListSearchesUsers(t *testing.T) {
	db, _, router := newAdminRouter(t)
	now := time.Now().UTC()
	for _, p := range []Profile{
		{TelegramID: "200", Username: "marina_wb", FirstName: "Марина"},
		{TelegramID: "300", Username: "oleg", FirstName: "Oleg"},
	} {
		if _, _, err := FindOrCreate(db, p, now); err != nil {
			t.Fatal(err)
		}
	}

	rec := doJSON(router, http.MethodGet, "/api/users?search=MARINA&limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data       []User `json:"data"`
		Pagination struct {
			TotalItems int64 `json:"totalItems"`
			PageSize   int   `json:"pageSize"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 1 || body.Data[0].TelegramID != "200" {
		t.Fatalf("unexpected users: %+v", body.Data)
	}
	if body.Pagination.TotalItems != 1 || body.Pagination.PageSize != 5 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}

	if rec := doJSON(router, http.MethodGet, "/api/users?role=owner", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid role filter status = %d", rec.Code)
	}
}

func TestUpdateRole(t *testing.T) {
	db, admin, router := newAdminRouter(t)
	member, _, err := FindOrCreate(db, Profile{TelegramID: "400", Username: "kate"}, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(router, http.MethodPut, "/api/users/"+member.ID.String()+"/role", map[string]string{"role": "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("promote status = %d, body %s", rec.Code, rec.Body.String())
	}
	reloaded, err := Get(db, member.ID)
	if err != nil || !reloaded.IsAdmin() {
		t.Fatalf("expected admin role, got %+v, %v", reloaded, err)
	}

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{name: "unknown role", path: "/api/users/" + member.ID.String() + "/role", body: map[string]string{"role": "owner"}, want: http.StatusBadRequest},
		{name: "missing role", path: "/api/users/" + member.ID.String() + "/role", body: map[string]string{}, want: http.StatusBadRequest},
		{name: "bad id", path: "/api/users/nope/role", body: map[string]string{"role": "USER"}, want: http.StatusBadRequest},
		{name: "unknown user", path: "/api/users/00000000-0000-0000-0000-000000000001/role", body: map[string]string{"role": "USER"}, want: http.StatusNotFound},
		{name: "self demotion", path: "/api/users/" + admin.ID.String() + "/role", body: map[string]string{"role": "USER"}, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := doJSON(router, http.MethodPut, tt.path, tt.body); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

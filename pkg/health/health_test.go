package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/wb-simple-server-go/internal/testutil"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
)

func TestHealthReportsRedisDownOnMemoryFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	h := NewHandler(db, cache.NewMemoryCache(), logger.Discard(), "1.2.3")

	router := gin.New()
	router.GET("/health", h.Health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Status != "ok" || body.Version != "1.2.3" {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Redis != StatusDown {
		t.Errorf("redis = %s, want DOWN", body.Redis)
	}
	if body.Database != StatusUp {
		t.Errorf("database = %s, want UP", body.Database)
	}
	if body.Timestamp.IsZero() {
		t.Error("timestamp missing")
	}
}

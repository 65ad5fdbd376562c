package request

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
	"github.com/mo-amir99/wb-simple-server-go/pkg/response"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Handler(logger.Discard()))
	return router
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAbortWritesGenericEnvelope(t *testing.T) {
	router := newRouter()
	reached := false
	router.GET("/boom", func(c *gin.Context) {
		Abort(c, "failed to load lesson", errors.New("pq: connection refused"))
	}, func(c *gin.Context) {
		reached = true
	})

	rec := serve(router, "/boom")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if reached {
		t.Fatal("handlers after Abort must not run")
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}

	var body response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Status != http.StatusInternalServerError || body.Message != "failed to load lesson" || body.Error != "internal_error" {
		t.Fatalf("unexpected envelope: %+v", body)
	}
}

func TestHandlerClassifiesPlainErrors(t *testing.T) {
	router := newRouter()
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(gorm.ErrRecordNotFound)
	})
	router.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(errors.New("logged only"))
	})

	if rec := serve(router, "/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("record not found status = %d, want 404", rec.Code)
	}

	rec := serve(router, "/written")
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("written response was replaced: %d %s", rec.Code, rec.Body.String())
	}
}

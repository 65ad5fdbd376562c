package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/items?"+query, nil)
	return c
}

func TestExtract(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{query: "", want: Params{Page: 1, Limit: DefaultLimit, Skip: 0}},
		{query: "page=3&limit=10", want: Params{Page: 3, Limit: 10, Skip: 20}},
		{query: "page=0&limit=-5", want: Params{Page: 1, Limit: DefaultLimit, Skip: 0}},
		{query: "limit=500", want: Params{Page: 1, Limit: MaxLimit, Skip: 0}},
		{query: "page=abc", want: Params{Page: 1, Limit: DefaultLimit, Skip: 0}},
	}

	for _, tt := range tests {
		if got := Extract(contextWithQuery(tt.query)); got != tt.want {
			t.Errorf("Extract(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestMetadataFrom(t *testing.T) {
	meta := MetadataFrom(45, Params{Page: 2, Limit: 20, Skip: 20})
	if meta.TotalPages != 3 {
		t.Fatalf("total pages = %d, want 3", meta.TotalPages)
	}
	if !meta.HasNextPage || !meta.HasPrevPage {
		t.Fatalf("unexpected navigation flags: %+v", meta)
	}

	last := MetadataFrom(45, Params{Page: 3, Limit: 20, Skip: 40})
	if last.HasNextPage {
		t.Fatal("last page should not report a next page")
	}

	empty := MetadataFrom(0, Params{Page: 1, Limit: 20})
	if empty.TotalPages != 0 || empty.HasNextPage || empty.HasPrevPage {
		t.Fatalf("unexpected metadata for empty result: %+v", empty)
	}
}

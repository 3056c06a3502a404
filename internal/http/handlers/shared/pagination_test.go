package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNormalizePagination(t *testing.T) {
	cases := []struct {
		page, size, wantPage, wantSize int
	}{
		{0, 0, 1, 20},
		{-3, 10, 1, 10},
		{2, 500, 2, 100},
	}
	for _, tc := range cases {
		page, size := NormalizePagination(tc.page, tc.size)
		if page != tc.wantPage || size != tc.wantSize {
			t.Fatalf("NormalizePagination(%d,%d)=(%d,%d), want (%d,%d)", tc.page, tc.size, page, size, tc.wantPage, tc.wantSize)
		}
	}
}

func TestQueryHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/v1/admin/bookings?page=3&page_size=50&batch_id=12&bad=x", nil)

	page, size := QueryPagination(c)
	if page != 3 || size != 50 {
		t.Fatalf("unexpected pagination: %d %d", page, size)
	}
	if got := QueryUint(c, "batch_id"); got != 12 {
		t.Fatalf("expected batch_id 12, got %d", got)
	}
	if got := QueryUint(c, "bad"); got != 0 {
		t.Fatalf("expected 0 for invalid value, got %d", got)
	}
}

// internal/utils/pagination_test.go
package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Skip: 0, Limit: 20}},
		{"skip=40&limit=10", PaginationParams{Skip: 40, Limit: 10}},
		{"skip=-5&limit=0", PaginationParams{Skip: 0, Limit: 20}},
		{"limit=1000", PaginationParams{Skip: 0, Limit: 100}},
		{"skip=abc&limit=xyz", PaginationParams{Skip: 0, Limit: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/images?"+tt.query, nil)
			assert.Equal(t, tt.want, GetPaginationParams(c, 20, 100))
		})
	}
}

// internal/utils/errors_test.go
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleErrorStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthenticated", NewUnauthenticated("auth.required", nil), http.StatusUnauthorized, CodeUnauthenticated},
		{"forbidden", NewForbidden("image.not_purchased"), http.StatusForbidden, CodeForbidden},
		{"not found", NewNotFound("image.not_found"), http.StatusNotFound, CodeNotFound},
		{"invalid input", NewInvalidInput("error.invalid_input", nil), http.StatusBadRequest, CodeInvalidInput},
		{"invalid event", NewInvalidEvent("payment.invalid_event", errors.New("bad sig")), http.StatusBadRequest, CodeInvalidEvent},
		{"upstream", NewUpstreamFailure("error.upstream", errors.New("s3 down")), http.StatusBadGateway, CodeUpstreamFailure},
		{"conflict", NewConflict("auth.user_exists"), http.StatusConflict, CodeConflict},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFound("image.not_found")), http.StatusNotFound, CodeNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamFailure("error.upstream", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeUpstreamFailure))
	assert.False(t, IsCode(cause, CodeUpstreamFailure))
}

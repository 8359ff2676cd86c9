package apperr_test

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

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

func Test_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid", err: apperr.ErrInvalid("x"), want: http.StatusBadRequest},
		{name: "conflict_is_bad_request", err: apperr.ErrConflict("x"), want: http.StatusBadRequest},
		{name: "not_found", err: apperr.ErrNotFound("x"), want: http.StatusNotFound},
		{name: "unauthorized", err: apperr.ErrUnauthorized("x"), want: http.StatusUnauthorized},
		{name: "forbidden", err: apperr.ErrForbidden("x"), want: http.StatusForbidden},
		{name: "internal", err: apperr.ErrInternal("x"), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("ctx: %w", apperr.ErrNotFound("x")), want: http.StatusNotFound},
		{name: "plain", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.HTTPStatus(tt.err))
		})
	}
}

func Test_Body_HidesInternalDetails(t *testing.T) {
	assert.Equal(t, apperr.APIError{Code: apperr.CodeInternal, Message: "internal server error"},
		apperr.Body(errors.New("dial tcp 10.0.0.1:3306: connection refused")))
	assert.Equal(t, apperr.APIError{Code: apperr.CodeConflict, Message: "no copies"},
		apperr.Body(apperr.ErrConflict("no copies")))
}

func Test_Is(t *testing.T) {
	err := fmt.Errorf("issue: %w", apperr.ErrConflict("dup"))
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.False(t, apperr.Is(err, apperr.CodeNotFound))
	assert.False(t, apperr.Is(nil, apperr.CodeConflict))
}

func Test_Respond(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { apperr.Respond(c, apperr.ErrNotFound("Book not found")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Book not found", body["message"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

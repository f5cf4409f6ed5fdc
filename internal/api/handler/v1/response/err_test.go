package response

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

	"github.com/vecollab/backend/internal/domain"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
		field  string
	}{
		{"not modified", domain.ErrNotModified, http.StatusNotModified, "not_modified", ""},
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", ""},
		{"no read access", fmt.Errorf("plan -> %w", domain.ErrNoReadAccess), http.StatusForbidden, "no_read_access", ""},
		{"no write access", domain.ErrNoWriteAccess, http.StatusForbidden, "no_write_access", ""},
		{"permission", domain.ErrInsufficientPermission, http.StatusForbidden, "insufficient_permission", ""},
		{"space not found", fmt.Errorf("%w: %w", domain.ErrSpaceNotFound, domain.ErrNotFound), http.StatusNotFound, "not_found", ""},
		{"missing key", &domain.FieldError{Kind: domain.ErrMissingKey, Field: "name"}, http.StatusBadRequest, "missing_key", "name"},
		{"wrong type", &domain.FieldError{Kind: domain.ErrWrongType, Field: "topics"}, http.StatusBadRequest, "wrong_type", "topics"},
		{"non unique step", domain.ErrNonUniqueStep, http.StatusBadRequest, "non_unique_step", ""},
		{"already exists", fmt.Errorf("space %w", domain.ErrAlreadyExists), http.StatusConflict, "already_exists", ""},
		{"only admin", domain.ErrSpaceOnlyAdmin, http.StatusConflict, "space_only_admin", ""},
		{"concurrent update", fmt.Errorf("space membership %w", domain.ErrConcurrentUpdate), http.StatusConflict, "concurrent_update", ""},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal_error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := FromError(tt.err)
			assert.Equal(t, tt.status, resp.HTTPStatusCode)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.Equal(t, tt.field, resp.Field)
			assert.Equal(t, http.StatusText(tt.status), resp.StatusText)
		})
	}
}

func TestFromError_InternalErrorsAreNotLeaked(t *testing.T) {
	resp := FromError(errors.New("password=hunter2"))
	assert.Empty(t, resp.ErrorText)

	resp = FromError(domain.ErrNoReadAccess)
	assert.Equal(t, domain.ErrNoReadAccess.Error(), resp.ErrorText)
}

func render(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(ctx *gin.Context) {
		Render(ctx, "test.site", err)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestRender(t *testing.T) {
	w := render(&domain.FieldError{Kind: domain.ErrMissingKey, Field: "text"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "missing_key", body["reason"])
	assert.Equal(t, "text", body["field"])
	assert.Equal(t, "Bad Request", body["status"])
}

func TestRender_NotModifiedHasNoBody(t *testing.T) {
	w := render(fmt.Errorf("reply -> %w", domain.ErrNotModified))
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRender_InternalError(t *testing.T) {
	w := render(errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Contains(t, w.Body.String(), "internal_error")
}

package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

func TestNormalizeValidationPath(t *testing.T) {
	testCases := []struct {
		name     string
		basePath string
		path     string
		want     string
	}{
		{name: "strip prefix", basePath: "/api/v1", path: "/api/v1/notifications/read-all", want: "/notifications/read-all"},
		{name: "root path", basePath: "/api/v1", path: "/api/v1", want: "/"},
		{name: "no match", basePath: "/api/v1", path: "/health/live", want: "/health/live"},
		{name: "empty base", basePath: "", path: "/notifications", want: "/notifications"},
		{name: "trailing slash base", basePath: "api/v1/", path: "/api/v1/internal/events", want: "/internal/events"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeValidationPath(normalizeBasePath(tc.basePath), tc.path))
		})
	}
}

func newValidatedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(MustOpenAPIValidator("/api/v1"))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"path": c.Request.URL.Path}) }
	router.GET("/api/v1/notifications", ok)
	router.PUT("/api/v1/notifications/:id/read", ok)
	router.PUT("/api/v1/notifications/preferences", ok)
	router.POST("/api/v1/internal/events", ok)
	router.GET("/health/live", ok)
	return router
}

func doValidated(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOpenAPIValidator(t *testing.T) {
	router := newValidatedRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list without params", http.MethodGet, "/api/v1/notifications", "", http.StatusOK},
		{"list with params", http.MethodGet, "/api/v1/notifications?limit=20&offset=40&unread_only=true", "", http.StatusOK},
		{"list with zero limit", http.MethodGet, "/api/v1/notifications?limit=0", "", http.StatusBadRequest},
		{"list with non-numeric offset", http.MethodGet, "/api/v1/notifications?offset=abc", "", http.StatusBadRequest},
		{"list with non-boolean unread_only", http.MethodGet, "/api/v1/notifications?unread_only=maybe", "", http.StatusBadRequest},
		{"mark read", http.MethodPut, "/api/v1/notifications/0190c1f2/read", "", http.StatusOK},
		{"preferences with wrong field type", http.MethodPut, "/api/v1/notifications/preferences", `{"email_grades":"yes"}`, http.StatusBadRequest},
		{"preferences valid", http.MethodPut, "/api/v1/notifications/preferences", `{"email_grades":false}`, http.StatusOK},
		{"dispatch unknown type", http.MethodPost, "/api/v1/internal/events", `{"type":"HOMEWORK","recipient_ids":["s1"]}`, http.StatusBadRequest},
		{"dispatch missing type", http.MethodPost, "/api/v1/internal/events", `{"recipient_ids":["s1"]}`, http.StatusBadRequest},
		{"dispatch valid", http.MethodPost, "/api/v1/internal/events", `{"type":"SYSTEM_ALERT","recipient_ids":["s1"]}`, http.StatusOK},
		{"undocumented path passes", http.MethodGet, "/health/live", "", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doValidated(router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.want, w.Code, w.Body.String())
			if tc.want == http.StatusBadRequest {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, apperrors.CodeValidationFailed, body["code"])
				assert.NotContains(t, body["message"], "\n")
			}
		})
	}
}

func TestOpenAPIValidatorRestoresPath(t *testing.T) {
	router := newValidatedRouter(t)
	w := doValidated(router, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/api/v1/notifications", body["path"])
}

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/api/middleware"
	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/repository"
)

func TestBuildCORSConfig_DefaultsToAllowlistWhenOriginsEmpty(t *testing.T) {
	got := buildCORSConfig(&config.Config{
		Server: config.ServerConfig{AllowCredentials: true},
	})
	assert.False(t, got.AllowAllOrigins)
	assert.True(t, got.AllowCredentials)
	assert.Len(t, got.AllowOrigins, 2)
}

func TestBuildCORSConfig_StripsWildcardUnlessUnsafeFlagEnabled(t *testing.T) {
	got := buildCORSConfig(&config.Config{
		Server: config.ServerConfig{
			AllowedOrigins:   []string{"*", "https://app.learnhub.io"},
			AllowCredentials: true,
		},
	})
	assert.False(t, got.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.learnhub.io"}, got.AllowOrigins)
}

func TestBuildCORSConfig_OnlyWildcardFallsBackToDefaults(t *testing.T) {
	got := buildCORSConfig(&config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
	})
	assert.False(t, got.AllowAllOrigins)
	assert.Equal(t, defaultAllowedOrigins, got.AllowOrigins)
}

func TestBuildCORSConfig_UnsafeAllowAllDisablesCredentials(t *testing.T) {
	got := buildCORSConfig(&config.Config{
		Server: config.ServerConfig{
			AllowedOrigins:        []string{"*"},
			AllowCredentials:      true,
			UnsafeAllowAllOrigins: true,
		},
	})
	assert.True(t, got.AllowAllOrigins)
	assert.False(t, got.AllowCredentials)
	assert.Empty(t, got.AllowOrigins)
}

type routerFixture struct {
	router *gin.Engine
	store  *repository.MemoryStore
	jwtCfg middleware.JWTConfig
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	cfg := &config.Config{}
	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte("router-test-key-123456789012345678"),
		Issuer:     "learnhub",
		ExpiresIn:  time.Hour,
	}
	store := repository.NewMemoryStore()
	server := handlers.NewServer(handlers.ServerDeps{Store: store, JWTCfg: jwtCfg})
	ws := func(c *gin.Context) { c.Status(http.StatusTeapot) }
	return &routerFixture{router: newRouter(cfg, server, ws), store: store, jwtCfg: jwtCfg}
}

func (f *routerFixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	return f.doJSON(t, method, path, token, "")
}

func (f *routerFixture) doJSON(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) token(t *testing.T, userID string, permissions ...string) string {
	t.Helper()
	token, _, err := middleware.GenerateToken(f.jwtCfg, userID, "", nil, permissions)
	require.NoError(t, err)
	return token
}

func TestRouter_PublicRoutes(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusTeapot, f.do(t, http.MethodGet, "/ws", "").Code)

	metrics := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "go_goroutines")
}

func TestRouter_APIRequiresSession(t *testing.T) {
	f := newRouterFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/notifications", "").Code)
}

func TestRouter_InboxIsScopedToCaller(t *testing.T) {
	f := newRouterFixture(t)
	_, err := f.store.Create(context.Background(), domain.Notification{
		ID:          "n-1",
		RecipientID: "s1",
		Type:        domain.TypeSystemAlert,
		Title:       "Hello",
		Message:     "World",
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/v1/notifications/unread-count", f.token(t, "s1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body["count"])

	w = f.do(t, http.MethodGet, "/api/v1/notifications/unread-count", f.token(t, "s2"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body["count"])
}

func TestRouter_PermissionGates(t *testing.T) {
	f := newRouterFixture(t)
	student := f.token(t, "s1")
	admin := f.token(t, "ops-1", middleware.PermissionAdmin)

	event := `{"type":"SYSTEM_ALERT","recipient_ids":["s1"]}`
	assert.Equal(t, http.StatusForbidden, f.doJSON(t, http.MethodPost, "/api/v1/internal/events", student, event).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/admin/log/level", student).Code)

	w := f.do(t, http.MethodGet, "/api/v1/admin/log/level", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "level")
}

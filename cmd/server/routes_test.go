package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"notify-hub.backend/internal/interfaces/http/handlers"
	"notify-hub.backend/internal/interfaces/http/middleware"
	"notify-hub.backend/pkg/jwt"
)

func testDeps(ping func(context.Context) error) routeDeps {
	return routeDeps{
		notificationHandler: &handlers.NotificationHandler{},
		tokenHandler:        &handlers.TokenHandler{},
		templateHandler:     &handlers.TemplateHandler{},
		suppressionHandler:  &handlers.SuppressionHandler{},
		adminHandler:        &handlers.AdminHandler{},
		authMiddleware:      middleware.AuthMiddleware(jwt.NewJWTService("secret", time.Minute)),
		ping:                ping,
	}
}

func TestNewRouter_RegistersRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(testDeps(nil))

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /api/v1/notifications",
		"POST /api/v1/tokens/validate",
		"POST /api/v1/tokens",
		"POST /api/v1/tokens/:id/revoke",
		"GET /api/v1/admin/templates/:name",
		"PUT /api/v1/admin/templates/:name",
		"POST /api/v1/admin/suppressions",
		"DELETE /api/v1/admin/suppressions",
		"GET /api/v1/admin/notifications",
		"GET /api/v1/admin/notifications/:id",
		"POST /api/v1/admin/notifications/:id/requeue",
		"POST /api/v1/admin/notifications/sweep",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestNewRouter_ProtectsServiceAndAdminRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(testDeps(nil))
	serviceToken, err := jwt.NewJWTService("secret", time.Minute).GenerateToken("comments-api", jwt.RoleService)
	require.NoError(t, err)

	call := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call(http.MethodPost, "/api/v1/notifications", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/api/v1/admin/notifications", "").Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/api/v1/admin/notifications", serviceToken).Code)

	// public and reaches the handler, which rejects the empty body before touching the service
	w := call(http.MethodPost, "/api/v1/tokens/validate", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_INVALID")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	// service token passes auth; binding fails on the empty body
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/api/v1/notifications", serviceToken).Code)
}

func TestHealthRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := newRouter(testDeps(func(context.Context) error { return nil }))
	w := httptest.NewRecorder()
	healthy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	down := newRouter(testDeps(func(context.Context) error { return errors.New("dial tcp: refused") }))
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(testDeps(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

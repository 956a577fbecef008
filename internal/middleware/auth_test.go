package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotator/internal/config"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

func serve(cfg *config.Config, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	AuthMiddleware(cfg)(ok).ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{Password: "secret"}

	rec := serve(cfg, httptest.NewRequest(http.MethodGet, "/api/images", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(cfg, httptest.NewRequest(http.MethodGet, "/gallery", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	for _, p := range []string{"/login", "/auth/login", "/static/app.js"} {
		rec = serve(cfg, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code, p)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
	require.Equal(t, http.StatusTeapot, serve(cfg, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.AddCookie(&http.Cookie{Name: "authenticated", Value: "yes"})
	require.Equal(t, http.StatusUnauthorized, serve(cfg, req).Code)
}

func TestAuthMiddleware_NoPassword(t *testing.T) {
	rec := serve(&config.Config{}, httptest.NewRequest(http.MethodGet, "/api/images", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestIsPublic(t *testing.T) {
	assert.True(t, isPublic("/static/css/x.css"))
	assert.False(t, isPublic("/loginx"))
	assert.False(t, isPublic("/static"))
}

package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/config"
)

func testRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	conn := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() { _ = conn.Close() })

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := newRouter(&cfg, conn, logger, prometheus.NewRegistry(), done)
	require.NoError(t, err)
	return r
}

func do(r http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Healthz(t *testing.T) {
	r := testRouter(t, nil)

	w := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_UnknownAPIRouteIsJSON404(t *testing.T) {
	r := testRouter(t, nil)

	w := do(r, http.MethodGet, "/api/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
}

func TestRouter_Metrics(t *testing.T) {
	r := testRouter(t, nil)
	do(r, http.MethodGet, "/healthz", nil)

	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "library_issues_total")
	assert.Contains(t, body, "library_returns_total")
	assert.Contains(t, body, `library_http_requests_total{endpoint="/healthz",method="GET",status="200"} 1`)
}

func TestRouter_SPAFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	r := testRouter(t, func(c *config.Config) { c.Web.Dir = dir })

	tests := []struct {
		name      string
		target    string
		body      string
		cached    bool
		typPrefix string
	}{
		{"root", "/", "<html>app</html>", false, "text/html"},
		{"client route", "/books/01HZZZ/edit", "<html>app</html>", false, "text/html"},
		{"asset", "/assets/app.js", "console.log(1)", true, "text/javascript"},
		{"directory", "/assets", "<html>app</html>", false, "text/html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
			assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), tt.typPrefix), w.Header().Get("Content-Type"))
			assert.Equal(t, tt.cached, w.Header().Get("Cache-Control") != "")
		})
	}

	w := do(r, http.MethodGet, "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_NoWebDir(t *testing.T) {
	r := testRouter(t, nil)

	w := do(r, http.MethodGet, "/some/page", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AuthGuardsWrites(t *testing.T) {
	r := testRouter(t, func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.JWTSecret = "secret"
	})

	for _, target := range []string{"/api/books", "/api/students", "/api/books/labels"} {
		w := do(r, http.MethodPost, target, strings.NewReader(`{}`))
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	r := testRouter(t, func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RPS = 0.001
		c.RateLimit.Burst = 1
	})

	// バインド失敗で DB まで行かない
	w := do(r, http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// レート制限は /api 配下のみ
	w = do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])

	f := root.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, config.DefaultPath, f.DefValue)
}

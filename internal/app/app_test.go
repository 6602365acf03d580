package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApplication builds a full application against a temp directory and
// an unreachable listing source. The Prometheus exporter registers against
// the process-global registry, so the application is built once per test
// binary.
func newTestApplication(t *testing.T) *Application {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("FADA_CONFIG_FILE", filepath.Join(dir, "no-such-config.yaml"))
	t.Setenv("FADA_LOGGING_OUTPUT", "console")
	t.Setenv("FADA_PATHS_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("FADA_PATHS_PDF_DIR", filepath.Join(dir, "data", "pdfs"))
	t.Setenv("FADA_PATHS_OUTPUT_DIR", filepath.Join(dir, "data", "output"))
	t.Setenv("FADA_PATHS_CACHE_FILE", filepath.Join(dir, "data", "fetch_cache.json"))
	t.Setenv("FADA_PATHS_LOGS_DIR", filepath.Join(dir, "logs"))
	t.Setenv("FADA_SOURCE_BASE_PAGE_URL", "http://127.0.0.1:1/press?page=")
	t.Setenv("FADA_SOURCE_BASE_SITE_URL", "http://127.0.0.1:1/")
	t.Setenv("FADA_SOURCE_TIMEOUT", "100ms")
	t.Setenv("FADA_SOURCE_MAX_PAGES", "1")

	app, err := NewApplication()
	require.NoError(t, err)
	t.Cleanup(func() {
		app.hub.Stop()
	})
	return app
}

func TestApplicationRouter(t *testing.T) {
	app := newTestApplication(t)
	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	get := func(t *testing.T, path string) (*http.Response, map[string]interface{}) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		var body map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp, body
	}

	t.Run("health endpoint reports healthy", func(t *testing.T) {
		resp, body := get(t, "/api/health")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, Version, body["version"])
	})

	t.Run("status endpoint lists sessions", func(t *testing.T) {
		resp, body := get(t, "/status")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "sessions")
	})

	t.Run("security headers applied", func(t *testing.T) {
		resp, _ := get(t, "/api/health")
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	})

	t.Run("request id propagated", func(t *testing.T) {
		resp, _ := get(t, "/api/health")
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("stream requires month and year", func(t *testing.T) {
		resp, body := get(t, "/stream")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "/errors/validation", body["type"])
	})

	t.Run("download requires session", func(t *testing.T) {
		resp, _ := get(t, "/download")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("download unknown session", func(t *testing.T) {
		resp, _ := get(t, "/download?session=nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("available months with unreachable source", func(t *testing.T) {
		resp, _ := get(t, "/available-months")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("metrics endpoint exposed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

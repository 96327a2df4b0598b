package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"costrict-updater/internal/config"
	"costrict-updater/internal/middleware"
	"costrict-updater/internal/models"
	"costrict-updater/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const packageYAML = `package: app
versions:
  "1.3.0":
    url: http://localhost:8090/packages/app-1.3.0.zip
    size: 11
    format: zip
    hash:
      md5: 5eb63bbbe01eeed093cb22bb8f5acdc3
policies:
  - matches: ["[1.0,1.3)"]
    target: "1.3.0"
`

func newRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	packageDir := t.TempDir()
	fileDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(packageDir, "app.yaml"), []byte(packageYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(fileDir, "app-1.3.0.zip"), []byte("hello world"), 0644))

	packages, err := config.ScanPackageDir(packageDir)
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.MetricsMiddleware())
	ctrl := NewAPIController(services.NewManifestService(packages),
		config.ServerConfig{PackageDir: packageDir, FileDir: fileDir}, "1.0.0-test")
	ctrl.RegisterRoutes(r)
	return r, packageDir
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQueryRoute(t *testing.T) {
	r, _ := newRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/query/app/1.2.0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.UpgradeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.HasNewVersion)
	assert.Equal(t, "1.3.0", res.PackageVersion)
	assert.EqualValues(t, 11, res.PackageSize)

	w = serve(r, http.MethodGet, "/api/v1/query/app/1.3.0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_new_version":false`)

	w = serve(r, http.MethodGet, "/api/v1/query/other/1.0.0", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/query/app/garbage", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPackageFilesSupportRange(t *testing.T) {
	r, _ := newRouter(t)

	w := serve(r, http.MethodHead, "/packages/app-1.3.0.zip", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "11", w.Header().Get("Content-Length"))

	w = serve(r, http.MethodGet, "/packages/app-1.3.0.zip", map[string]string{"Range": "bytes=6-"})
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "world", w.Body.String())
}

func TestReloadRoute(t *testing.T) {
	r, packageDir := newRouter(t)

	tool := strings.ReplaceAll(packageYAML, "package: app", "package: tool")
	require.NoError(t, os.WriteFile(filepath.Join(packageDir, "tool.yml"), []byte(tool), 0644))

	w := serve(r, http.MethodPost, "/api/v1/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"packages":2`)

	w = serve(r, http.MethodGet, "/api/v1/query/tool/1.0.0", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	r, _ := newRouter(t)
	serve(r, http.MethodGet, "/api/v1/query/app/1.2.0", nil)

	w := serve(r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, "1.0.0-test", health.Version)
	assert.Equal(t, 1, health.Metrics.Packages)
	assert.Positive(t, health.Metrics.TotalRequests)

	w = serve(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "service_request_total")
}

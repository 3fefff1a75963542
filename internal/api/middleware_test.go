package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFromConfig(t *testing.T) {
	logger, err := NewLoggerFromConfig(&config.LogConfig{Level: "warn", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	hook := test.NewLocal(logger)
	logger.Warn("hello")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "docflow-gin", hook.LastEntry().Data["service"])

	logger, err = NewLoggerFromConfig(&config.LogConfig{Level: "nonsense", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewLoggerFromConfig_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docflow.log")
	logger, err := NewLoggerFromConfig(&config.LogConfig{Level: "info", Format: "json", Output: "file", File: path})
	require.NoError(t, err)
	logger.WithField("workflow_id", "wf-1").Info("archived")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"workflow_id":"wf-1"`)
	assert.Contains(t, string(data), `"service":"docflow-gin"`)

	_, err = NewLoggerFromConfig(&config.LogConfig{Level: "info", Output: "syslog"})
	assert.Error(t, err)
}

func TestRequestLogMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()

	router := gin.New()
	router.Use(RequestIDMiddleware(), RequestLogMiddleware(logger))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/items/42", entry.Data["path"])
	assert.Equal(t, 404, entry.Data["status"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

func TestCORSMiddleware_AllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware(config.CORSConfig{
		AllowedOrigins: []string{"https://docs.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		MaxAge:         600,
	}))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://docs.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://docs.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	serve := func(hsts bool, path string) *httptest.ResponseRecorder {
		router := gin.New()
		router.Use(SecurityHeadersMiddleware(hsts))
		router.GET("/*any", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := serve(false, "/api/v1/workflows")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, apiContentSecurityPolicy, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	w = serve(false, "/swagger/index.html")
	assert.Equal(t, swaggerContentSecurityPolicy, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("Cache-Control"))

	w = serve(true, "/health")
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(0, 0))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestInitTracing_FileOutput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "traces.json")
	tracing, err := InitTracing(config.TracingConfig{Enabled: true, ServiceName: "docflow-test", Output: output})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TracingMiddleware("docflow-test"))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NoError(t, tracing.Shutdown(context.Background()))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/ping")

	var nilTracing *Tracing
	assert.NoError(t, nilTracing.Shutdown(context.Background()))
}

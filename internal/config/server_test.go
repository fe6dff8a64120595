package config

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"FaceGrouping/internal/launcher"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DSN", "file:"+filepath.Join(t.TempDir(), "server.db"))
	t.Setenv("JWT_ACCESS_TOKEN_SECRET", "server-secret")

	env, err := LoadEnv()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	metrics := launcher.NewPrometheusMetricsCollector("facegroupd")
	l := launcher.New(env.LauncherConfig(), launcher.WithLogger(logger), launcher.WithMetricsCollector(metrics))

	server, err := NewServer(
		WithFiber(NewFiber(logger)),
		WithLogger(logger),
		WithEnv(env),
		WithValidator(NewValidator()),
		WithDatabase(),
		WithS3Client(),
		WithLauncher(l),
		WithMetricsRegistry(metrics.Registry()),
		WithMiddleware(),
		WithUtils(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })

	server.RegisterHandler()
	return server
}

func get(t *testing.T, s *Server, method, path, body string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.engine.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestNewServerRequiresCoreOptions(t *testing.T) {
	_, err := NewServer()
	assert.Error(t, err)

	_, err = NewServer(WithFiber(NewFiber(logrus.New())), WithLogger(logrus.New()))
	assert.Error(t, err)
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)

	status, body := get(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, `"status":"degraded"`)
	assert.Contains(t, body, `"service":"deepface-grouping"`)

	status, body = get(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "facegroupd_launcher_queue_depth")

	status, body = get(t, s, http.MethodPost, "/group", `{"photos":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "At least one photo is required")

	status, _ = get(t, s, http.MethodGet, "/group/unknown", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, s, http.MethodPost, "/runtime/restart", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServerRejectsWorkWhenLauncherNotStarted(t *testing.T) {
	s := newTestServer(t)
	photo := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))

	status, body := get(t, s, http.MethodPost, "/analyze", `{"photo":"`+photo+`"}`)

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, launcher.ErrNotStarted.Error())
}

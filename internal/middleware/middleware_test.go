package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtPkg "FaceGrouping/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func newTestMiddleware(opts Options) Middleware {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if opts.JWTSecret == "" {
		opts.JWTSecret = testSecret
	}
	return New(logger, opts)
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	m := newTestMiddleware(Options{})
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	generated := resp.Header.Get(RequestIDKey)
	assert.Len(t, generated, 26)
	assert.Equal(t, generated, string(body))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "client-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "client-id", resp.Header.Get(RequestIDKey))
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	m := newTestMiddleware(Options{})
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "unknown", string(body))
}

func TestRateLimiter(t *testing.T) {
	m := newTestMiddleware(Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	app := fiber.New()
	app.Use(m.NewRateLimiter)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestTokenMiddleware(t *testing.T) {
	m := newTestMiddleware(Options{})
	app := fiber.New()
	app.Get("/admin", m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		op, err := jwtPkg.GetOperator(c)
		if err != nil {
			return err
		}
		return c.JSON(op)
	})

	admin, _, err := jwtPkg.Sign(testSecret, map[string]interface{}{"sub": "ops", "role": AdminRole}, time.Hour)
	require.NoError(t, err)
	viewer, _, err := jwtPkg.Sign(testSecret, map[string]interface{}{"sub": "ops", "role": "viewer"}, time.Hour)
	require.NoError(t, err)
	forged, _, err := jwtPkg.Sign("wrong", map[string]interface{}{"sub": "ops", "role": AdminRole}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"forged", "Bearer " + forged, fiber.StatusUnauthorized},
		{"wrong role", "Bearer " + viewer, fiber.StatusForbidden},
		{"admin", "Bearer " + admin, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestTokenMiddlewareWithoutSecret(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := New(logger, Options{})

	app := fiber.New()
	app.Get("/admin", m.NewTokenMiddleware, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	token, _, err := jwtPkg.Sign(testSecret, map[string]interface{}{"sub": "ops", "role": AdminRole}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSanitizeRequestBody(t *testing.T) {
	assert.Equal(t, `{"photos":["a.jpg"],"token":"[SECRET]"}`, sanitizeRequestBody(`{"photos":["a.jpg"],"token":"abc"}`))
	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody("photo=a.jpg"))
}


package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("gw-secret", "/healthz"))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/campaigns", func(c *fiber.Ctx) error { return c.SendString("ok") })

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"open path", "/healthz", "", http.StatusOK},
		{"missing", "/campaigns", "", http.StatusUnauthorized},
		{"wrong", "/campaigns", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/campaigns", "Bearer gw-secret", http.StatusOK},
		{"raw", "/campaigns", "gw-secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	app.Get("/me", func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })
	app.Get("/admin", RequireRole(RoleAdmin), func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "player")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "player, Admin")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	app := fiber.New()
	app.Use(UserContextMiddleware())
	app.Post("/draw", rl.Handler(), func(c *fiber.Ctx) error { return c.SendString("ok") })

	call := func(user string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/draw", nil)
		req.Header.Set("X-User-ID", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, http.StatusOK, call("u1").StatusCode)
	assert.Equal(t, http.StatusOK, call("u1").StatusCode)
	throttled := call("u1")
	assert.Equal(t, http.StatusTooManyRequests, throttled.StatusCode)
	assert.NotEmpty(t, throttled.Header.Get("Retry-After"))

	// other users have their own bucket
	assert.Equal(t, http.StatusOK, call("u2").StatusCode)
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("old")
	now = now.Add(time.Hour)
	rl.getLimiter("fresh")

	assert.Equal(t, 1, rl.Cleanup(30*time.Minute))
	assert.Equal(t, 1, rl.Len())
}

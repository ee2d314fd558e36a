package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRateLimitCountsPerUser(t *testing.T) {
	app := fiber.New()
	app.Post("/submit",
		func(c *fiber.Ctx) error {
			if id := c.Get("X-User"); id == "1" {
				c.Locals("user_id", uint(1))
			} else if id == "2" {
				c.Locals("user_id", uint(2))
			}
			return c.Next()
		},
		RateLimit(RateLimitConfig{Name: "submissions", Max: 2, Window: time.Minute}),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusAccepted) },
	)

	send := func(user string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusAccepted, send("1").StatusCode)
	require.Equal(t, fiber.StatusAccepted, send("1").StatusCode)

	blocked := send("1")
	require.Equal(t, fiber.StatusTooManyRequests, blocked.StatusCode)
	require.Equal(t, "60", blocked.Header.Get(fiber.HeaderRetryAfter))

	require.Equal(t, fiber.StatusAccepted, send("2").StatusCode)
	require.Equal(t, fiber.StatusAccepted, send("").StatusCode)
}

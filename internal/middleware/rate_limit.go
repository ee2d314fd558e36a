package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// RateLimitConfig describes one limiter. Requests are counted per
// authenticated user, or per client IP before authentication.
type RateLimitConfig struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
	// Storage shares counters between instances; nil keeps them in memory.
	Storage fiber.Storage
}

// RateLimit builds a fixed window limiter that answers 429 with the standard
// envelope once Max requests were seen within Window.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Message == "" {
		cfg.Message = "trop de requêtes, réessayez plus tard"
	}

	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return cfg.Name + ":" + rateLimitSubject(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			return utils.SendError(c, fiber.StatusTooManyRequests, cfg.Message)
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(uint); ok && id > 0 {
		return "user-" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip-" + c.IP()
}

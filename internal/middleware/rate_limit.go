package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberutils "github.com/gofiber/fiber/v2/utils"

	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// ClientIP returns the address activity is attributed to: the first
// X-Forwarded-For hop when present, otherwise the socket address. The value is
// safe to keep after the request completes.
func ClientIP(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return fiberutils.CopyString(first)
		}
	}
	return fiberutils.CopyString(c.IP())
}

// RateLimit limits requests per authenticated user, falling back to the
// attributed client IP for guests.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals(LocalUserID).(uint); ok && userID != 0 {
				return fmt.Sprintf("%s:user:%d", scope, userID)
			}
			return fmt.Sprintf("%s:ip:%s", scope, ClientIP(c))
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests", fiber.Map{
				"scope":          scope,
				"limit":          max,
				"window_seconds": int(window.Seconds()),
			})
		},
	})
}

package middleware

import (
	"github.com/duetly/api/pkg/response"
	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers
// set by Traefik ForwardAuth and populates Fiber context locals.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals("userId", userID)
		c.Locals("handle", c.Get("X-User-Handle"))

		return c.Next()
	}
}

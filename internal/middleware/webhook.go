package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// WebhookAuthMiddleware validates the gateway's verif-hash header against
// the configured shared secret. The webhook endpoint is otherwise
// unauthenticated; this header is the only source of trust.
func WebhookAuthMiddleware(webhookSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if webhookSecret == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "webhook secret not configured")
		}

		signature := c.Get("verif-hash")
		if subtle.ConstantTimeCompare([]byte(signature), []byte(webhookSecret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook signature")
		}

		return c.Next()
	}
}

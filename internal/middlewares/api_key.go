package middlewares

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// APIKeyMiddleware requires the static bearer key shared with job runner
// clients.
func APIKeyMiddleware(apiKey string) fiber.Handler {
	expected := []byte(apiKey)

	return func(c fiber.Ctx) error {
		provided, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}

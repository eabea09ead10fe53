package middlewares

import (
	"github.com/flowbaker/weave/internal/auth"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

type RequestVerifier interface {
	VerifyRequest(method, path, signatureHeader, timestampHeader string, body []byte) error
}

// SignatureMiddleware rejects job runner requests that are not signed by the
// paired private key.
func SignatureMiddleware(verifier RequestVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		timestamp := c.Get(auth.TimestampHeader)

		err := verifier.VerifyRequest(c.Method(), c.Path(), c.Get(auth.SignatureHeader), timestamp, c.Body())
		if err != nil {
			log.Warn().
				Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("timestamp", timestamp).
				Str("ip", c.IP()).
				Msg("Rejected job runner request with invalid signature")

			return fiber.NewError(fiber.StatusUnauthorized, "Invalid request signature")
		}

		return c.Next()
	}
}

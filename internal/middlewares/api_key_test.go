package middlewares

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(APIKeyMiddleware("runner-key"))
	app.Get("/api/v1/runs/:runID", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid key", "Bearer runner-key", fiber.StatusOK},
		{"wrong key", "Bearer other-key", fiber.StatusUnauthorized},
		{"missing header", "", fiber.StatusUnauthorized},
		{"not a bearer token", "runner-key", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/api/v1/runs/run_1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

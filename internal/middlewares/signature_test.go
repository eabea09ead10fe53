package middlewares

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/flowbaker/weave/internal/auth"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureMiddleware(t *testing.T) {
	keys, err := auth.GenerateKeyPair()
	require.NoError(t, err)

	signer, err := auth.NewRequestSigner(keys.PrivateKey)
	require.NoError(t, err)

	verifier, err := auth.NewSignatureVerifier(keys.PublicKey)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(SignatureMiddleware(verifier))
	app.Post("/api/v1/tasks/:kind/trigger", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	body := []byte(`{"payload":{"prompt":"hi"}}`)
	path := "/api/v1/tasks/run-llm-task/trigger"

	signed := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(body))
	for key, value := range signer.SignRequest(fiber.MethodPost, path, body) {
		signed.Header.Set(key, value)
	}

	resp, err := app.Test(signed)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	unsigned := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(body))

	resp, err = app.Test(unsigned)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	tampered := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader([]byte(`{"payload":{"prompt":"bye"}}`)))
	for key, value := range signer.SignRequest(fiber.MethodPost, path, body) {
		tampered.Header.Set(key, value)
	}

	resp, err = app.Test(tampered)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

package middlewares

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityApp(t *testing.T, verifier *TokenVerifier) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Use(IdentityMiddleware(verifier))
	app.Get("/me", func(c fiber.Ctx) error {
		identity, ok := CallerIdentity(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.JSON(fiber.Map{"user_id": identity.UserID, "email": identity.Email})
	})

	return app
}

func TestIdentityMiddleware(t *testing.T) {
	verifier, err := NewTokenVerifier("secret", "weave")
	require.NoError(t, err)

	other, err := NewTokenVerifier("other-secret", "weave")
	require.NoError(t, err)

	valid, err := verifier.Sign(domain.CallerIdentity{UserID: "alice", Email: "alice@example.com"}, nil)
	require.NoError(t, err)

	foreign, err := other.Sign(domain.CallerIdentity{UserID: "alice"}, nil)
	require.NoError(t, err)

	expired, err := verifier.Sign(domain.CallerIdentity{UserID: "alice"}, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": "weave"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: fiber.StatusOK},
		{name: "missing header", header: "", wantStatus: fiber.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: fiber.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: fiber.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: fiber.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + noSubject, wantStatus: fiber.StatusUnauthorized},
	}

	app := newIdentityApp(t, verifier)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestNewTokenVerifierRequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier("", "")
	assert.Error(t, err)
}

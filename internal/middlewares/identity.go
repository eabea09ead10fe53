package middlewares

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flowbaker/weave/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var ErrMissingSubject = errors.New("token has no subject")

// TokenVerifier turns a bearer token into the caller identity.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}, nil
}

func (v *TokenVerifier) Verify(tokenString string) (domain.CallerIdentity, error) {
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return domain.CallerIdentity{}, fmt.Errorf("failed to parse token: %w", err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return domain.CallerIdentity{}, ErrMissingSubject
	}

	email, _ := claims["email"].(string)

	return domain.CallerIdentity{
		UserID: subject,
		Email:  email,
	}, nil
}

// Sign issues a token for the identity. Used by tests and local tooling.
func (v *TokenVerifier) Sign(identity domain.CallerIdentity, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}

	claims["sub"] = identity.UserID
	if identity.Email != "" {
		claims["email"] = identity.Email
	}

	if v.issuer != "" {
		claims["iss"] = v.issuer
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// IdentityMiddleware requires a valid bearer token and stores the caller
// identity in the request context.
func IdentityMiddleware(verifier *TokenVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		identity, err := verifier.Verify(tokenString)
		if err != nil {
			log.Debug().
				Err(err).
				Str("path", c.Path()).
				Msg("Bearer token rejected")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid bearer token",
			})
		}

		c.Locals(domain.CallerIdentityContextKey{}, identity)

		return c.Next()
	}
}

// CallerIdentity returns the identity stored by IdentityMiddleware.
func CallerIdentity(c fiber.Ctx) (domain.CallerIdentity, bool) {
	identity, ok := c.Locals(domain.CallerIdentityContextKey{}).(domain.CallerIdentity)
	if !ok || identity.UserID == "" {
		return domain.CallerIdentity{}, false
	}

	return identity, true
}

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/gofiber/fiber/v2"
)

// TokenVerifier checks bearer tokens
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*identity.Principal, error)
}

// RequireAuth middleware validates the bearer token and blocks anonymous callers
func RequireAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "Unauthorized: No token provided")
		}

		principal, err := verifier.VerifyToken(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, identity.ErrTokenExpired) {
				return unauthorized(c, "Token expired. Please log in again.")
			}
			return unauthorized(c, "Invalid token")
		}

		// Store principal for handlers and downstream services
		c.Locals(PrincipalKey, principal)
		c.SetUserContext(identity.WithPrincipal(c.UserContext(), principal))

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(model.Failure(message, fiber.StatusUnauthorized))
}

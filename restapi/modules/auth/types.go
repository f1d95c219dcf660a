// Package auth provides the login endpoint and the bearer token gate for the REST API.
package auth

import (
	"context"

	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/gofiber/fiber/v2"
)

// PrincipalKey is the fiber locals key holding the verified *identity.Principal.
const PrincipalKey = "principal"

// LoginRequest defines the body for email/password login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionService is the login flow used by the Login handler
type SessionService interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
}

// CurrentPrincipal returns the principal attached by RequireAuth.
func CurrentPrincipal(c *fiber.Ctx) (*identity.Principal, bool) {
	p, ok := c.Locals(PrincipalKey).(*identity.Principal)
	return p, ok && p != nil
}

package auth

import (
	"errors"

	"github.com/ebuddy/user-admin-backend/internal/services"
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/gofiber/fiber/v2"
)

// Login exchanges email and password for a session token
func Login(svc SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(model.Failure("Email and password are required", fiber.StatusBadRequest))
		}

		session, err := svc.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			var authErr *services.AuthError
			if errors.As(err, &authErr) {
				return c.Status(authErr.Code).JSON(model.Failure(authErr.Message, authErr.Code))
			}
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				return c.Status(fiber.StatusBadRequest).JSON(model.Failure(verr.Message, fiber.StatusBadRequest))
			}
			return c.Status(fiber.StatusInternalServerError).JSON(model.Failure("Internal server error", fiber.StatusInternalServerError))
		}

		return c.JSON(model.Success("Login successful", session))
	}
}

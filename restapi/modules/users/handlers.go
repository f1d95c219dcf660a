// Package users provides the user administration handlers for Fiber.
package users

import (
	"context"
	"errors"

	"github.com/ebuddy/user-admin-backend/internal/services"
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/ebuddy/user-admin-backend/restapi/modules/auth"
	"github.com/gofiber/fiber/v2"
)

// Service is the user orchestration used by the handlers
type Service interface {
	Create(ctx context.Context, in model.NewUser) (string, error)
	Get(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id string, patch model.UserPatch) (*services.UpdateResult, error)
	Delete(ctx context.Context, id string) error
}

// ============================================================================
// USER HANDLERS
// ============================================================================

// FetchAllUsers returns every user profile
func FetchAllUsers(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := svc.List(c.UserContext())
		if err != nil {
			return writeError(c, err, "Failed to fetch users")
		}
		if len(users) == 0 {
			return fail(c, fiber.StatusNotFound, "No users found")
		}
		return c.JSON(model.Success("All users fetched successfully", users))
	}
}

// FetchUserData returns one user profile
func FetchUserData(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fail(c, fiber.StatusBadRequest, "User ID is required")
		}

		user, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeError(c, err, "Failed to fetch user data")
		}
		return c.JSON(model.Success("User data fetched successfully", user))
	}
}

// CreateUserData creates the identity account and the profile
func CreateUserData(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req model.NewUser
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}

		id, err := svc.Create(c.UserContext(), req)
		if err != nil {
			return writeError(c, err, "Failed to create user")
		}
		return c.JSON(model.Success("User added successfully", fiber.Map{"id": id}))
	}
}

// UpdateUserData applies a partial update to a user
func UpdateUserData(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fail(c, fiber.StatusBadRequest, "User ID is required")
		}

		var patch model.UserPatch
		if err := c.BodyParser(&patch); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}

		result, err := svc.Update(c.UserContext(), id, patch)
		if err != nil {
			return writeError(c, err, "Failed to update user")
		}
		return c.JSON(model.Success("User updated successfully", result))
	}
}

// DeleteUserData removes a user. Callers cannot delete themselves.
func DeleteUserData(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fail(c, fiber.StatusBadRequest, "User ID is required")
		}

		if principal, ok := auth.CurrentPrincipal(c); ok && principal.UID == id {
			return fail(c, fiber.StatusForbidden, "You cannot delete your own account")
		}

		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeError(c, err, "Failed to delete user")
		}
		return c.JSON(model.Success("User deleted successfully", nil))
	}
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(model.Failure(message, status))
}

// writeError maps service errors to statuses. Upstream details never reach the client.
func writeError(c *fiber.Ctx, err error, upstreamMsg string) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return fail(c, fiber.StatusBadRequest, verr.Message)
	case errors.Is(err, services.ErrUserNotFound):
		return fail(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrCreateUserFailed):
		return fail(c, fiber.StatusInternalServerError, "Failed to create user")
	default:
		return fail(c, fiber.StatusInternalServerError, upstreamMsg)
	}
}

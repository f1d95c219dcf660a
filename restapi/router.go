// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"github.com/ebuddy/user-admin-backend/restapi/modules/auth"
	"github.com/ebuddy/user-admin-backend/restapi/modules/users"
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// Dependencies are the services the routes are bound to
type Dependencies struct {
	Verifier auth.TokenVerifier
	Sessions auth.SessionService
	Users    users.Service
	Schema   graphql.Schema
}

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	// API Group /api/v1
	api := app.Group("/api/v1")

	// Auth Routes
	authGroup := api.Group("/auth")
	authGroup.Post("/login", auth.Login(deps.Sessions))

	// Everything below requires a bearer token
	requireAuth := auth.RequireAuth(deps.Verifier)

	// User Management
	api.Get("/fetch-all-users", requireAuth, users.FetchAllUsers(deps.Users))
	api.Get("/fetch-user-data/:id?", requireAuth, users.FetchUserData(deps.Users))
	api.Post("/create-user-data", requireAuth, users.CreateUserData(deps.Users))
	api.Put("/update-user-data/:id?", requireAuth, users.UpdateUserData(deps.Users))
	api.Delete("/delete-user-data/:id?", requireAuth, users.DeleteUserData(deps.Users))

	// GraphQL Route
	api.Post("/graphql", requireAuth, GraphQLHandler(deps.Schema))
}

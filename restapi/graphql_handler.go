// Package restapi provides HTTP handlers for the REST API including GraphQL support.
package restapi

import (
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// GraphQLHandler returns a Fiber handler for GraphQL requests
func GraphQLHandler(schema graphql.Schema) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var params struct {
			Query         string                 `json:"query"`
			OperationName string                 `json:"operationName"`
			Variables     map[string]interface{} `json:"variables"`
		}

		if err := c.BodyParser(&params); err != nil || params.Query == "" {
			return c.Status(fiber.StatusBadRequest).JSON(model.Failure("Invalid request body", fiber.StatusBadRequest))
		}

		// The user context carries the principal set by RequireAuth
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  params.Query,
			VariableValues: params.Variables,
			OperationName:  params.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}

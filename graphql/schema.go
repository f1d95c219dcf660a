// Package graphql assembles the read-only GraphQL schema.
package graphql

import (
	"github.com/ebuddy/user-admin-backend/graphql/modules/users"
	"github.com/graphql-go/graphql"
)

// CreateSchema builds the root schema from the module query fields.
func CreateSchema(userReader users.Reader) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: users.GetQueryFields(userReader),
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

// Package users defines the GraphQL queries for user profiles.
package users

import (
	"context"
	"errors"

	"github.com/ebuddy/user-admin-backend/internal/services"
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/graphql-go/graphql"
)

// Reader is the read side of the user service.
type Reader interface {
	Get(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// GetQueryFields returns the user queries to be mounted in the root schema.
func GetQueryFields(svc Reader) graphql.Fields {
	return graphql.Fields{
		"user": &graphql.Field{
			Type: UserType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id := p.Args["id"].(string)
				user, err := svc.Get(p.Context, id)
				if errors.Is(err, services.ErrUserNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, errors.New("failed to fetch user")
				}
				return *user, nil
			},
		},
		"users": &graphql.Field{
			Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(UserType))),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				users, err := svc.List(p.Context)
				if err != nil {
					return nil, errors.New("failed to fetch users")
				}
				return users, nil
			},
		},
	}
}

package users

import (
	"github.com/graphql-go/graphql"
)

// UserType represents a stored user profile.
var UserType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":                        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"name":                      &graphql.Field{Type: graphql.String},
		"email":                     &graphql.Field{Type: graphql.String},
		"totalAverageWeightRatings": &graphql.Field{Type: graphql.Float},
		"numberOfRents":             &graphql.Field{Type: graphql.Int},
		"recentlyActive":            &graphql.Field{Type: graphql.Float, Description: "Last activity in epoch milliseconds"},
	},
})

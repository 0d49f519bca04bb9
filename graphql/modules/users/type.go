// Package users defines the GraphQL types for the admin user reports.
package users

import (
	"github.com/graphql-go/graphql"
)

// UserWithGptCountType represents one row of the paginated user report
var UserWithGptCountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UserWithGptCount",
	Fields: graphql.Fields{
		"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"name":       &graphql.Field{Type: graphql.String},
		"email":      &graphql.Field{Type: graphql.String},
		"role":       &graphql.Field{Type: graphql.String},
		"createdAt":  &graphql.Field{Type: graphql.DateTime},
		"lastActive": &graphql.Field{Type: graphql.DateTime},
		"gptCount":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

// UsersPageType wraps a page of users with paging metadata
var UsersPageType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UsersPage",
	Fields: graphql.Fields{
		"users": &graphql.Field{Type: graphql.NewList(UserWithGptCountType)},
		"total": &graphql.Field{Type: graphql.Int},
		"page":  &graphql.Field{Type: graphql.Int},
		"limit": &graphql.Field{Type: graphql.Int},
	},
})

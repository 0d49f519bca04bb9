// Package users defines the GraphQL queries for the admin user reports.
package users

import (
	"github.com/Cognio-so/agt-tester/database"
	"github.com/graphql-go/graphql"
)

// GetQueryFields returns the user report queries to be mounted in the root schema
func GetQueryFields(store database.Store) graphql.Fields {
	return graphql.Fields{
		"usersWithGptCounts": &graphql.Field{
			Type: UsersPageType,
			Args: graphql.FieldConfigArgument{
				"page":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
				"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				page, _ := p.Args["page"].(int)
				limit, _ := p.Args["limit"].(int)
				return ResolveUsersWithGptCounts(p.Context, store, page, limit)
			},
		},
		"userGptCount": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Int),
			Args: graphql.FieldConfigArgument{
				"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				userID, _ := p.Args["userId"].(string)
				return ResolveUserGptCount(p.Context, store, userID)
			},
		},
	}
}

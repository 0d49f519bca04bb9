// Package graphql assembles the GraphQL schema served at /api/graphql.
package graphql

import (
	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/graphql/modules/users"
	"github.com/graphql-go/graphql"
)

// CreateSchema builds the root schema over store
func CreateSchema(store database.Store) (graphql.Schema, error) {
	fields := graphql.Fields{}
	for name, field := range users.GetQueryFields(store) {
		fields[name] = field
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}

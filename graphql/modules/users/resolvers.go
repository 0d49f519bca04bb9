// Package users implements the resolvers for the admin user reports.
package users

import (
	"context"
	"strconv"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/internal/reporting"
)

type contextKey string

// CallerKey holds the id of the authenticated caller in the resolver context
const CallerKey contextKey = "callerId"

// ResolveUsersWithGptCounts returns one page of users other than the caller
func ResolveUsersWithGptCounts(ctx context.Context, store database.Store, page, limit int) (interface{}, error) {
	callerID, _ := ctx.Value(CallerKey).(string)
	p := reporting.ParsePage(strconv.Itoa(page), strconv.Itoa(limit))

	result, err := reporting.UsersWithGptCounts(ctx, store, callerID, p)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, len(result.Users))
	for i, u := range result.Users {
		rows[i] = map[string]interface{}{
			"id":         u.ID,
			"name":       u.Name,
			"email":      u.Email,
			"role":       string(u.Role),
			"createdAt":  u.CreatedAt,
			"lastActive": u.LastActive,
			"gptCount":   u.GptCount,
		}
	}

	return map[string]interface{}{
		"users": rows,
		"total": result.Total,
		"page":  result.Page,
		"limit": result.Limit,
	}, nil
}

// ResolveUserGptCount returns the number of GPTs assigned to userID
func ResolveUserGptCount(ctx context.Context, store database.Store, userID string) (interface{}, error) {
	return reporting.UserGptCount(ctx, store, userID)
}

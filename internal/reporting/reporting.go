// Package reporting implements the read-only admin queries over users.
package reporting

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/model"
)

// Pagination defaults
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a parsed page request
type Page struct {
	Page  int
	Limit int
}

// Skip returns the number of rows before the page
func (p Page) Skip() int {
	return (p.Page - 1) * p.Limit
}

// ParsePage reads page and limit query values. Missing, malformed or
// non-positive values fall back to the defaults. Limit is capped at MaxLimit
// and page is capped so that Skip never overflows.
func ParsePage(pageStr, limitStr string) Page {
	limit := min(positiveOr(limitStr, DefaultLimit), MaxLimit)
	page := min(positiveOr(pageStr, DefaultPage), math.MaxInt/limit)
	return Page{Page: page, Limit: limit}
}

func positiveOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// UsersPage is one page of users with their GPT assignment counts
type UsersPage struct {
	Users []model.UserWithGptCount `json:"users"`
	Total int                      `json:"total"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
}

// UsersWithGptCounts lists users newest first, without excludeID, each with
// the number of GPTs assigned to them. Counts come from a single grouped
// query for the whole page.
func UsersWithGptCounts(ctx context.Context, store database.Store, excludeID string, p Page) (UsersPage, error) {
	total, err := store.CountUsers(ctx, excludeID)
	if err != nil {
		return UsersPage{}, fmt.Errorf("count users: %w", err)
	}

	users, err := store.ListUsersPage(ctx, excludeID, p.Skip(), p.Limit)
	if err != nil {
		return UsersPage{}, fmt.Errorf("list users: %w", err)
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.Key
	}
	counts, err := store.CountAssignmentsByUser(ctx, ids)
	if err != nil {
		return UsersPage{}, fmt.Errorf("count assignments: %w", err)
	}

	rows := make([]model.UserWithGptCount, len(users))
	for i, u := range users {
		rows[i] = model.UserWithGptCount{
			ID:         u.Key,
			Name:       u.Name,
			Email:      u.Email,
			Role:       u.Role,
			CreatedAt:  u.CreatedAt,
			LastActive: u.LastActive,
			GptCount:   counts[u.Key],
		}
	}

	return UsersPage{Users: rows, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// UserGptCount returns how many GPTs are assigned to userID
func UserGptCount(ctx context.Context, store database.Store, userID string) (int, error) {
	n, err := store.CountAssignmentsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return n, nil
}

package database

import (
	"context"
	"errors"
	"time"

	"github.com/Cognio-so/agt-tester/model"
)

var (
	// ErrNotFound is returned when no document matches
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an email is already taken by another user
	ErrDuplicateEmail = errors.New("email already in use")
)

// Store is the persistence surface used by the account and admin handlers.
type Store interface {
	// CreateUser inserts u and sets u.Key.
	CreateUser(ctx context.Context, u *model.User) error
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	// FindUserByVerificationCode matches only codes whose expiry is after now.
	FindUserByVerificationCode(ctx context.Context, code string, now time.Time) (*model.User, error)
	// FindUserByResetToken matches only tokens whose expiry is after now.
	FindUserByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error)
	// UpdateUser replaces the stored document with u.
	UpdateUser(ctx context.Context, u *model.User) error
	// SetLastActive stamps lastActive; a nil at marks the user inactive.
	SetLastActive(ctx context.Context, id string, at *time.Time) error

	// ListUsers returns every user, newest first.
	ListUsers(ctx context.Context) ([]*model.User, error)
	CountUsers(ctx context.Context, excludeID string) (int, error)
	// ListUsersPage returns one page of users, newest first, without excludeID.
	ListUsersPage(ctx context.Context, excludeID string, skip, limit int) ([]*model.User, error)

	// CountAssignmentsByUser returns assignment counts keyed by user id in one
	// grouped query. Users without assignments are absent from the map.
	CountAssignmentsByUser(ctx context.Context, userIDs []string) (map[string]int, error)
	CountAssignmentsForUser(ctx context.Context, userID string) (int, error)

	// DeleteUserCascade removes the user's chat history, GPT assignments and
	// favorites and then the user, atomically.
	DeleteUserCascade(ctx context.Context, userID string) (model.DeletionResult, error)
}

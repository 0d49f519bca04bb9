// Package admin implements the REST API handlers for administering accounts.
// It provides user listings, permission changes and team member removal.
package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/events/modules/accounts"
	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/Cognio-so/agt-tester/internal/reporting"
	"github.com/Cognio-so/agt-tester/model"
	"github.com/Cognio-so/agt-tester/restapi/modules/auth"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var errUserNotFound = apperr.NotFound("User not found")

// GetAllUsers lists every user, newest first
func GetAllUsers(s *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := s.Store().ListUsers(c.UserContext())
		if err != nil {
			return apperr.Internal("Server error", err)
		}

		out := make([]model.UserResponse, len(users))
		for i, u := range users {
			out[i] = u.Sanitize()
		}
		return c.JSON(fiber.Map{"success": true, "users": out})
	}
}

// GetUsersWithGptCounts pages through users other than the caller with
// their GPT assignment counts
func GetUsersWithGptCounts(s *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := reporting.ParsePage(c.Query("page"), c.Query("limit"))

		result, err := reporting.UsersWithGptCounts(c.UserContext(), s.Store(), auth.CurrentUser(c).Key, page)
		if err != nil {
			return apperr.Internal("Server error", err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"users":   result.Users,
			"total":   result.Total,
			"page":    result.Page,
			"limit":   result.Limit,
		})
	}
}

// GetUserGptCount returns the number of GPTs assigned to :userId
func GetUserGptCount(s *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := reporting.UserGptCount(c.UserContext(), s.Store(), c.Params("userId"))
		if err != nil {
			return apperr.Internal("Server error", err)
		}
		return c.JSON(fiber.Map{"success": true, "count": count})
	}
}

// GetUserActivity is open to admins and to the user themself. Activity is
// not recorded yet so the list is always empty.
func GetUserActivity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := auth.CurrentUser(c)
		if !caller.IsAdmin() && caller.Key != c.Params("userId") {
			return apperr.Forbidden("Not authorized to access this resource")
		}
		return c.JSON(fiber.Map{"success": true, "activities": []any{}})
	}
}

// UpdateUserPermissions changes role and department of :userId
func UpdateUserPermissions(s *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req auth.PermissionsRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("Invalid request body")
		}

		u, err := UpdatePermissions(c.UserContext(), s, c.Params("userId"), req)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "User permissions updated successfully",
			"user": fiber.Map{
				"id":         u.Key,
				"name":       u.Name,
				"email":      u.Email,
				"role":       u.Role,
				"department": u.Department,
			},
		})
	}
}

// UpdatePermissions applies a role and/or department change. Roles are
// lower-cased and must be known.
func UpdatePermissions(ctx context.Context, s *auth.Service, userID string, req auth.PermissionsRequest) (*model.User, error) {
	var role model.Role
	if strings.TrimSpace(req.Role) != "" {
		r, ok := model.ParseRole(req.Role)
		if !ok {
			return nil, apperr.Validation("Invalid role")
		}
		role = r
	}

	u, err := s.Store().FindUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, apperr.Internal("Failed to update user permissions", err)
	}

	roleChanged := role != "" && role != u.Role
	if role != "" {
		u.Role = role
	}
	if dept := strings.TrimSpace(req.Department); dept != "" {
		u.Department = dept
	}
	u.UpdatedAt = time.Now().UTC()

	if err := s.Store().UpdateUser(ctx, u); err != nil {
		return nil, apperr.Internal("Failed to update user permissions", err)
	}

	if roleChanged {
		s.Publish(ctx, accounts.EventRoleChanged, u)
	}
	return u, nil
}

// RemoveTeamMember deletes :userId together with everything they own
func RemoveTeamMember(s *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		userID := c.Params("userId")

		u, err := s.Store().FindUserByID(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return errUserNotFound
		}
		if err != nil {
			return apperr.Internal("Failed to remove team member", err)
		}

		result, err := s.Store().DeleteUserCascade(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return errUserNotFound
		}
		if err != nil {
			return apperr.Internal("Failed to remove team member", err)
		}

		s.Logger().Info("Removed team member",
			zap.String("user_id", userID),
			zap.String("removed_by", auth.CurrentUser(c).Key),
			zap.Int("chat_history", result.ChatHistory),
			zap.Int("gpt_assignments", result.GptAssignments),
			zap.Int("favorites", result.Favorites))
		s.Publish(ctx, accounts.EventDeleted, u)

		return c.JSON(fiber.Map{
			"success":         true,
			"message":         "User and all associated data removed successfully",
			"deletionResults": result,
		})
	}
}

package auth

import (
	"errors"
	"strings"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/Cognio-so/agt-tester/model"
	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

var errNotAuthorized = apperr.Unauthorized("Not authorized")

// RequireAuth validates the Bearer access token and loads its user into
// c.Locals("user"). Guests are rejected with 401.
func RequireAuth(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return errNotAuthorized
		}

		userID, err := s.tokens.VerifyAccessToken(token)
		if err != nil {
			return errNotAuthorized
		}

		u, err := s.store.FindUserByID(c.UserContext(), userID)
		if errors.Is(err, database.ErrNotFound) {
			return errNotAuthorized
		}
		if err != nil {
			return internal("Server error", err)
		}

		c.Locals(userLocal, u)
		return c.Next()
	}
}

// RequireRole admits authenticated users holding one of allowedRoles.
// It must run after RequireAuth.
func RequireRole(allowedRoles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := CurrentUser(c)
		if u == nil {
			return errNotAuthorized
		}

		for _, role := range allowedRoles {
			if u.Role == role {
				return c.Next()
			}
		}
		return apperr.Forbidden("Not authorized to access this resource")
	}
}

// CurrentUser returns the user loaded by RequireAuth, or nil
func CurrentUser(c *fiber.Ctx) *model.User {
	u, _ := c.Locals(userLocal).(*model.User)
	return u
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

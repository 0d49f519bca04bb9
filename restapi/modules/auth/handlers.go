package auth

import (
	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/Cognio-so/agt-tester/internal/tokens"
	"github.com/Cognio-so/agt-tester/model"
	"github.com/gofiber/fiber/v2"
)

var errInvalidBody = apperr.Validation("Invalid request body")

// ============================================================================
// AUTH HANDLERS
// ============================================================================

// Signup handles credential registration
func Signup(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		if _, err := s.Signup(c.UserContext(), req); err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Signup successful. Please verify your email.",
		})
	}
}

// VerifyEmail consumes the emailed verification code
func VerifyEmail(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req VerifyEmailRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		u, err := s.VerifyEmail(c.UserContext(), req.Code)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Email verified successfully. Welcome to the app!",
			"user":    u.Sanitize(),
		})
	}
}

// Login authenticates with email and password and starts a session
func Login(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		u, err := s.Authenticate(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return err
		}

		accessToken, err := s.startSession(c, u)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success":     true,
			"message":     "Login successful",
			"accessToken": accessToken,
			"user":        u.Summary(),
		})
	}
}

// Logout clears the refresh cookie
func Logout(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.tokens.ClearRefreshCookie(c)
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Logged out successfully",
		})
	}
}

// ForgotPassword emails a password reset link
func ForgotPassword(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ForgotPasswordRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		if err := s.ForgotPassword(c.UserContext(), req.Email); err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Reset password email sent successfully",
		})
	}
}

// ResetPassword sets a new password using the token from the path
func ResetPassword(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ResetPasswordRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		if err := s.ResetPassword(c.UserContext(), c.Params("token"), req.Password); err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Password reset successfully",
		})
	}
}

// RefreshToken issues a new access token from the refresh cookie. The cookie
// is cleared when it is rejected or the refresh fails unexpectedly.
func RefreshToken(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken, _, err := s.Refresh(c.UserContext(), c.Cookies(tokens.RefreshCookie))
		if err != nil {
			if status := apperr.StatusOf(err); status == fiber.StatusForbidden || status == fiber.StatusInternalServerError {
				s.tokens.ClearRefreshCookie(c)
			}
			return err
		}

		return c.JSON(fiber.Map{"accessToken": accessToken})
	}
}

// startSession issues both tokens and stamps lastActive
func (s *Service) startSession(c *fiber.Ctx, u *model.User) (string, error) {
	accessToken, err := s.tokens.IssueAccessToken(u.Key)
	if err != nil {
		return "", internal("Server error", err)
	}
	if _, err := s.tokens.IssueRefreshToken(c, u.Key); err != nil {
		return "", internal("Server error", err)
	}
	if err := s.Touch(c.UserContext(), u); err != nil {
		return "", err
	}
	return accessToken, nil
}

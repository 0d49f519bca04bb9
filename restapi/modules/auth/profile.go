package auth

import (
	"context"
	"io"
	"strings"

	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

// MaxProfileImageSize bounds profile picture uploads
const MaxProfileImageSize = 5 << 20

// ============================================================================
// ACCOUNT HANDLERS
// ============================================================================

// Me returns the caller's identity and marks them active
func Me(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := CurrentUser(c)
		if err := s.Touch(c.UserContext(), u); err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"_id":        u.Key,
			"name":       u.Name,
			"email":      u.Email,
			"profilePic": u.ProfilePic,
			"role":       u.Role,
		})
	}
}

// SetInactive clears the caller's lastActive
func SetInactive(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.SetInactive(c.UserContext(), CurrentUser(c).Key); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "User marked as inactive."})
	}
}

// UpdateProfile changes the caller's name or email
func UpdateProfile(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req UpdateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		u, err := s.UpdateProfile(c.UserContext(), CurrentUser(c).Key, req)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Profile updated successfully.",
			"user":    u.Sanitize(),
		})
	}
}

// UpdateProfilePicture accepts a multipart image in the profileImage field
func UpdateProfilePicture(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("profileImage")
		if err != nil {
			return apperr.Validation("No image file provided.")
		}
		if fh.Size > MaxProfileImageSize {
			return apperr.Validation("Image must be 5MB or smaller.")
		}
		contentType := fh.Header.Get(fiber.HeaderContentType)
		if !strings.HasPrefix(contentType, "image/") {
			return apperr.Validation("Invalid file type. Please upload an image.")
		}

		f, err := fh.Open()
		if err != nil {
			return internal("Server error updating profile picture.", err)
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, MaxProfileImageSize+1))
		if err != nil {
			return internal("Server error updating profile picture.", err)
		}

		u, err := s.UpdateProfilePicture(c.UserContext(), CurrentUser(c).Key, ProfilePicture{
			Data:        data,
			Filename:    fh.Filename,
			ContentType: contentType,
		})
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Profile picture updated successfully.",
			"user":    u.Sanitize(),
		})
	}
}

// ChangePassword handles PATCH /change-password
func ChangePassword(s *Service) fiber.Handler {
	return passwordHandler(s.ChangePassword, "Password updated successfully.")
}

// UpdatePassword handles PATCH /update-password
func UpdatePassword(s *Service) fiber.Handler {
	return passwordHandler(s.UpdatePassword, "Password updated successfully")
}

func passwordHandler(change func(context.Context, string, PasswordChangeRequest) error, okMessage string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PasswordChangeRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		if err := change(c.UserContext(), CurrentUser(c).Key, req); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": okMessage})
	}
}

// GetAPIKeys returns the caller's decrypted API keys
func GetAPIKeys(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		keys, err := s.APIKeys(c.UserContext(), CurrentUser(c).Key)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "apiKeys": keys})
	}
}

// SaveAPIKeys encrypts and stores the caller's API keys
func SaveAPIKeys(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req APIKeysRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		if err := s.SaveAPIKeys(c.UserContext(), CurrentUser(c).Key, req.APIKeys); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "API keys saved successfully"})
	}
}

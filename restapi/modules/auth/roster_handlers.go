package auth

import (
	"io"

	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

// ============================================================================
// ROSTER HANDLERS
// ============================================================================

// ApplyRosterFromBody applies roster YAML sent as {"roster": "..."}
func ApplyRosterFromBody(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Roster string `json:"roster"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}
		return applyRoster(c, s, []byte(req.Roster))
	}
}

// ApplyRosterFromUpload applies a roster uploaded in the file field
func ApplyRosterFromUpload(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("No file uploaded")
		}

		f, err := fh.Open()
		if err != nil {
			return internal("Failed to open file", err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return internal("Failed to read file", err)
		}
		return applyRoster(c, s, data)
	}
}

func applyRoster(c *fiber.Ctx, s *Service, data []byte) error {
	roster, err := ParseRoster(data)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	result, err := s.ApplyRoster(c.UserContext(), roster)
	if err != nil {
		return internal("Failed to apply roster", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Roster applied successfully",
		"result":  result,
	})
}

// Package api builds the Fiber application serving the account API.
package api

import (
	"errors"
	"strings"
	"time"

	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/Cognio-so/agt-tester/restapi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Options configures NewFiberApp
type Options struct {
	CORSOrigins []string
	Logger      *zap.Logger
	// RequestLog enables per-request access logging
	RequestLog bool
}

// NewFiberApp creates and configures a Fiber app with REST and GraphQL routes
func NewFiberApp(opts Options, deps restapi.Deps) *fiber.App {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		// credentials are never allowed with a wildcard origin
		origins = []string{"http://localhost:5173"}
	}

	app := fiber.New(fiber.Config{
		AppName:      "agt-tester API v1.0",
		BodyLimit:    8 * 1024 * 1024, // profile pictures are capped at 5MB
		ReadTimeout:  60 * time.Second,
		ErrorHandler: ErrorHandler(log),
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		AllowMethods:     "GET, POST, HEAD, PUT, DELETE, PATCH, OPTIONS",
	}))

	if opts.RequestLog {
		app.Use(logger.New())
	}

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	restapi.SetupRoutes(app, deps)

	return app
}

// ErrorHandler renders every handler error as {"success": false, "message": ...}.
// Causes of internal errors are logged and never sent to the client.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Server error"

		var appErr *apperr.Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status, message = appErr.Status, appErr.Message
		case errors.As(err, &fiberErr):
			status, message = fiberErr.Code, fiberErr.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"message": message,
		})
	}
}

package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Options configures New
type Options struct {
	Max        int
	Expiration time.Duration
	// Storage is shared between instances; nil keeps counters in memory.
	Storage fiber.Storage
}

// New limits requests per client IP.
func New(opts Options) fiber.Handler {
	if opts.Max <= 0 {
		opts.Max = 20
	}
	if opts.Expiration <= 0 {
		opts.Expiration = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        opts.Max,
		Expiration: opts.Expiration,
		Storage:    opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests, please try again later.",
			})
		},
	})
}

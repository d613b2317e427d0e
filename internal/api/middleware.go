package api

import (
	"fmt"
	"time"

	"chatdispatch/internal/auth"
	"chatdispatch/internal/observability"
	"chatdispatch/internal/rate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// SetupMiddleware attaches the process-wide middleware every route
// shares: recovery, request IDs, CORS, and request logging with
// metrics. Auth and rate limiting are NOT registered here — both need
// a resolved session, so they are attached per-route in SetupRoutes
// after RequireBearerToken runs.
func SetupMiddleware(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Info("http_request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Get("X-Request-ID")),
		)

		if metrics != nil {
			metrics.HTTPRequestsTotal.WithLabelValues(c.Route().Path, c.Method(), fmt.Sprintf("%d", status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(c.Route().Path, c.Method()).Observe(duration.Seconds())
		}

		return err
	})
}

// rateLimitMiddleware enforces the per-user bucket. It must run after
// RequireBearerToken so a session is already in context; SetupRoutes
// wires it into the authenticated group rather than as a global Use,
// otherwise the session lookup below always fails and the limiter
// never fires.
func rateLimitMiddleware(logger *zap.Logger, limiter *rate.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := auth.SessionFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		allowed, retryAfter, err := limiter.Allow(c.Context(), session.UserID)
		if err != nil {
			logger.Error("rate limiting error", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "rate limiting error"})
		}

		if !allowed {
			c.Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":               "rate limit exceeded",
				"retry_after_seconds": int(retryAfter.Seconds()),
			})
		}

		return c.Next()
	}
}

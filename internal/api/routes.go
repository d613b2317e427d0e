package api

import (
	"chatdispatch/internal/auth"
	"chatdispatch/internal/observability"
	"chatdispatch/internal/rate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRoutes wires the HTTP surface: unauthenticated health/metrics
// endpoints, and the bearer-authenticated, rate-limited /v1 group.
func SetupRoutes(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, handlers *Handlers, authSvc *auth.AuthService, limiter *rate.Limiter) {
	app.Get("/healthz", handlers.HealthCheck)
	app.Get("/readyz", handlers.ReadyCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1", authSvc.RequireBearerToken(), rateLimitMiddleware(logger, limiter))

	v1.Post("/messages", handlers.SendMessage)
	v1.Get("/messages", handlers.ListMessages)
	v1.Get("/messages/:id", handlers.GetMessage)
	v1.Get("/messages/:id/attempts", handlers.GetAttempts)
	v1.Post("/messages/:id/retry", handlers.RetryMessage)
	v1.Post("/destinations/:id/retry", handlers.RetryDestination)
}

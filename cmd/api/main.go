package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/adapter/max"
	"chatdispatch/internal/adapter/telegram"
	"chatdispatch/internal/adapter/vk"
	"chatdispatch/internal/api"
	"chatdispatch/internal/auth"
	"chatdispatch/internal/config"
	"chatdispatch/internal/db"
	"chatdispatch/internal/observability"
	"chatdispatch/internal/queue"
	"chatdispatch/internal/rate"
	"chatdispatch/internal/routing"
	"chatdispatch/internal/send"
	"chatdispatch/internal/store"
	"chatdispatch/internal/tokens"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting chatdispatch api", zap.String("port", cfg.Port))

	routing.Configure(cfg.RetryMaxAttempts, time.Duration(cfg.RetryBaseDelaySeconds)*time.Second, cfg.RetryMaxBackoffDoublings)

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.RunMigrations("migrations"); err != nil {
		logger.Warn("failed to run migrations", zap.Error(err))
	}

	redisDB, err := db.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisDB.Close()

	q, err := queue.New(cfg.NATSURL, queue.Config{
		AckWait:    cfg.QueueAckWait,
		MaxDeliver: cfg.QueueMaxDeliver,
		PullBatch:  cfg.QueuePullBatch,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer q.Close()

	cleanupOtel, err := observability.SetupOpenTelemetry("chatdispatch-api", logger)
	if err != nil {
		logger.Warn("failed to set up opentelemetry", zap.Error(err))
	} else {
		defer cleanupOtel()
	}
	metrics := observability.NewMetrics()

	messageStore := store.New(postgres, logger)
	tokenService := tokens.New(postgres, logger)
	authService := auth.NewAuthService(postgres, logger)
	limiter := rate.NewLimiter(redisDB, logger, 5, 10)

	httpClient := adapterHTTPClient(cfg)
	registry := adapter.NewRegistry(
		telegram.New(httpClient),
		vk.New(httpClient),
		max.New(httpClient),
	)

	sendUC := send.New(messageStore, tokenService, q, registry, logger)
	handlers := api.NewHandlers(logger, messageStore, sendUC, q)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Error("fiber error", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		},
	})

	api.SetupMiddleware(app, logger, metrics)
	api.SetupRoutes(app, logger, metrics, handlers, authService, limiter)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("chatdispatch api started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("failed to shut down gracefully", zap.Error(err))
	}

	logger.Info("chatdispatch api stopped")
}

func adapterHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.AdapterHTTPTimeout}
}

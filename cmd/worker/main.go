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
	"chatdispatch/internal/config"
	"chatdispatch/internal/db"
	"chatdispatch/internal/dispatch"
	"chatdispatch/internal/model"
	"chatdispatch/internal/observability"
	"chatdispatch/internal/queue"
	"chatdispatch/internal/retry"
	"chatdispatch/internal/routing"
	"chatdispatch/internal/store"
	"chatdispatch/internal/tokens"
	"chatdispatch/internal/worker"

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

	logger.Info("starting chatdispatch worker", zap.Int("concurrency", cfg.WorkerConcurrency))

	routing.Configure(cfg.RetryMaxAttempts, time.Duration(cfg.RetryBaseDelaySeconds)*time.Second, cfg.RetryMaxBackoffDoublings)

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	q, err := queue.New(cfg.NATSURL, queue.Config{
		AckWait:    cfg.QueueAckWait,
		MaxDeliver: cfg.QueueMaxDeliver,
		PullBatch:  cfg.QueuePullBatch,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer q.Close()

	messageStore := store.New(postgres, logger)
	tokenService := tokens.New(postgres, logger)
	metrics := observability.NewMetrics()

	httpClient := &http.Client{Timeout: cfg.AdapterHTTPTimeout}
	registry := adapter.NewRegistry(
		telegram.New(httpClient),
		vk.New(httpClient),
		max.New(httpClient),
	)

	dispatcher := dispatch.New(messageStore, tokenService, registry, logger).WithMetrics(metrics)

	platforms := []model.Platform{model.PlatformTelegram, model.PlatformVK, model.PlatformMAX}
	pool := worker.New(q, dispatcher, platforms, worker.Config{Concurrency: cfg.WorkerConcurrency}, logger)

	workerCtx, cancel := context.WithCancel(ctx)
	pool.Start(workerCtx)

	sweeper := retry.NewSweeper(messageStore, q, cfg.RetrySweepInterval, cfg.RetrySweepBatch, logger).WithMetrics(metrics)
	go sweeper.Run(workerCtx)

	logger.Info("chatdispatch worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down worker")
	cancel()

	if err := pool.Stop(10 * time.Second); err != nil {
		logger.Warn("worker pool did not shut down cleanly", zap.Error(err))
	}

	logger.Info("chatdispatch worker stopped")
}

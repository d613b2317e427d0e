package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`

	// Database
	PostgresURL string `envconfig:"POSTGRES_URL" required:"true"`

	// Redis
	RedisURL string `envconfig:"REDIS_URL" required:"true"`

	// NATS
	NATSURL         string        `envconfig:"NATS_URL" required:"true"`
	QueueAckWait    time.Duration `envconfig:"QUEUE_ACK_WAIT" default:"30s"`
	QueueMaxDeliver int           `envconfig:"QUEUE_MAX_DELIVER" default:"10"`
	QueuePullBatch  int           `envconfig:"QUEUE_PULL_BATCH" default:"32"`

	// Retry
	RetryMaxAttempts         int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelaySeconds    int           `envconfig:"RETRY_BASE_DELAY_SECONDS" default:"60"`
	RetryMaxBackoffDoublings int           `envconfig:"RETRY_MAX_BACKOFF_DOUBLINGS" default:"4"`
	RetrySweepInterval       time.Duration `envconfig:"RETRY_SWEEP_INTERVAL" default:"60s"`
	RetrySweepBatch          int           `envconfig:"RETRY_SWEEP_BATCH" default:"100"`

	// Worker
	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"4"`

	// Platform adapters
	AdapterHTTPTimeout time.Duration `envconfig:"ADAPTER_HTTP_TIMEOUT" default:"30s"`

	// Observability
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

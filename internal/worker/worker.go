// Package worker runs the per-platform pools that pull queued
// destinations off the durable stream and hand them to the dispatcher.
// Each platform gets its own fixed-size pool so a slow or rate-limited
// platform never starves the others.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatdispatch/internal/dispatch"
	"chatdispatch/internal/model"
	"chatdispatch/internal/queue"

	"go.uber.org/zap"
)

// ErrShutdownTimeout is returned by Stop when worker goroutines do not
// exit within the requested timeout.
var ErrShutdownTimeout = errors.New("worker: shutdown timeout exceeded")

// Config controls how many concurrent pull loops run per platform.
type Config struct {
	Concurrency int
}

func DefaultConfig() Config {
	return Config{Concurrency: 4}
}

// Pool owns one goroutine per platform per concurrency slot, each
// running its own durable pull-subscribe loop against the queue.
type Pool struct {
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
	platforms  []model.Platform
	cfg        Config
	logger     *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(q *queue.Queue, d *dispatch.Dispatcher, platforms []model.Platform, cfg Config, logger *zap.Logger) *Pool {
	return &Pool{queue: q, dispatcher: d, platforms: platforms, cfg: cfg, logger: logger}
}

// Start launches Concurrency goroutines per platform and returns
// immediately; call Stop to shut them down.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("starting dispatch worker pool",
		zap.Int("platforms", len(p.platforms)), zap.Int("concurrency", p.cfg.Concurrency))

	for _, platform := range p.platforms {
		for slot := 0; slot < p.cfg.Concurrency; slot++ {
			p.wg.Add(1)
			go p.run(ctx, platform, slot)
		}
	}
}

// run keeps a pull loop alive for the lifetime of the pool, restarting
// it after a brief pause if the underlying subscription errors out
// (e.g. a transient NATS disconnect).
func (p *Pool) run(ctx context.Context, platform model.Platform, slot int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := p.queue.Subscribe(ctx, platform, p.dispatcher.HandleItem)
		if err == nil || ctx.Err() != nil {
			return
		}

		p.logger.Error("worker: subscription ended, restarting",
			zap.String("platform", string(platform)), zap.Int("slot", slot), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// Stop cancels every running pull loop and waits for them to exit, up
// to timeout.
func (p *Pool) Stop(timeout time.Duration) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// Package retry turns a failed delivery attempt into a scheduled
// redelivery. JetStream has no native per-message delay in the nats.go
// client version this module targets, so a destination marked Retrying
// is picked up by the periodic Sweeper once its backoff window has
// elapsed, rather than being re-published immediately with an
// in-process timer.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"chatdispatch/internal/model"
	"chatdispatch/internal/observability"
	"chatdispatch/internal/queue"
	"chatdispatch/internal/routing"
	"chatdispatch/internal/store"

	"go.uber.org/zap"
)

// Scheduler computes backoff delays using a process-local RNG for
// jitter; ComputeRetryDelay itself stays deterministic and is tested
// without randomness.
type Scheduler struct {
	rng *rand.Rand
}

func NewScheduler() *Scheduler {
	return &Scheduler{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NextDelay returns how long to wait before the next attempt given how
// many have already been made.
func (s *Scheduler) NextDelay(attemptCount int) time.Duration {
	return routing.ComputeRetryDelay(attemptCount, s.rng.Float64())
}

// Sweeper periodically re-publishes destinations left in StatusRetrying
// whose backoff window has elapsed, and destinations stuck in
// StatusPending whose first publish never reached the queue. The
// dispatcher acks a retryably-failed item without republishing it, so
// this sweep is the path by which a Retrying destination is sent again.
type Sweeper struct {
	store    *store.Store
	queue    *queue.Queue
	interval time.Duration
	batch    int
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewSweeper(s *store.Store, q *queue.Queue, interval time.Duration, batch int, logger *zap.Logger) *Sweeper {
	return &Sweeper{store: s, queue: q, interval: interval, batch: batch, logger: logger}
}

// WithMetrics attaches a Metrics instance the sweeper reports the
// pending-retry backlog to, broken down by platform.
func (sw *Sweeper) WithMetrics(m *observability.Metrics) *Sweeper {
	sw.metrics = m
	return sw
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.sweepOnce(ctx)
		}
	}
}

// pendingStaleAfter is how long a destination may sit in StatusPending
// before the sweeper assumes its original publish never made it onto
// the queue and republishes it itself (spec.md §7: "the destination
// remains Pending, sweeper will recover").
const pendingStaleAfter = 30 * time.Second

func (sw *Sweeper) sweepOnce(ctx context.Context) {
	candidates, err := sw.store.FindPendingRetries(ctx, time.Now().UTC().Add(-pendingStaleAfter), sw.batch)
	if err != nil {
		sw.logger.Error("retry: sweep query failed", zap.Error(err))
		return
	}

	if sw.metrics != nil {
		sw.metrics.QueueDepth.Reset()
		byPlatform := make(map[model.Platform]int)
		for _, dest := range candidates {
			byPlatform[dest.Platform]++
		}
		for platform, count := range byPlatform {
			sw.metrics.QueueDepth.WithLabelValues(string(platform)).Set(float64(count))
		}
	}

	for _, dest := range candidates {
		switch dest.Status {
		case model.StatusRetrying:
			if dest.LastAttemptAt == nil {
				continue
			}
			delay := routing.ComputeRetryDelay(dest.AttemptCount, 0.5)
			if time.Since(*dest.LastAttemptAt) < delay {
				continue
			}
		case model.StatusPending:
			// Never made it onto the queue the first time; republish
			// unconditionally, no backoff window to respect.
		default:
			continue
		}

		item := model.QueueItem{
			MessageID:     dest.MessageID,
			DestinationID: dest.ID,
			Platform:      dest.Platform,
			AttemptNumber: dest.AttemptCount,
			MaxAttempts:   routing.MaxAttempts(),
			RequestedBy:   model.RequestedBySystem,
		}
		if err := sw.queue.Publish(ctx, item); err != nil {
			sw.logger.Error("retry: republish failed",
				zap.String("destination_id", dest.ID), zap.Error(err))
			continue
		}

		if dest.Status == model.StatusPending {
			if err := sw.store.UpdateDestination(ctx, dest.ID, model.StatusPending, store.DestinationUpdate{
				Status: model.StatusQueued,
			}); err != nil && !errors.Is(err, model.ErrConcurrentUpdate) {
				sw.logger.Error("retry: failed to mark recovered destination queued",
					zap.String("destination_id", dest.ID), zap.Error(err))
			}
		}

		sw.logger.Info("retry: republished destination",
			zap.String("destination_id", dest.ID), zap.Int("attempt", dest.AttemptCount))
	}
}

// ManualRetry resets a destination the caller wants retried immediately
// regardless of its backoff window. Per spec.md §4.6 it force-resets
// attempt_count to attempt_count+1, clears error_reason, and moves the
// destination through Pending then Queued before publishing — the same
// path a fresh send takes, so the dispatcher's own claim-and-dispatch
// logic needs no special case for a manually-requested attempt. The
// published item's AttemptNumber stays at the pre-bump count so the
// dispatcher's `item.AttemptNumber+1` lands on the attempt_count already
// persisted here, instead of skipping one.
func ManualRetry(ctx context.Context, s *store.Store, q *queue.Queue, destinationID string) error {
	dest, err := s.GetDestination(ctx, destinationID)
	if err != nil {
		return err
	}
	if dest.Status == model.StatusSent || dest.Status == model.StatusCancelled {
		return model.ErrTerminalDestination
	}

	nextAttempt := dest.AttemptCount + 1

	if err := s.UpdateDestination(ctx, destinationID, dest.Status, store.DestinationUpdate{
		Status:       model.StatusPending,
		AttemptCount: &nextAttempt,
	}); err != nil {
		return err
	}

	if err := s.UpdateDestination(ctx, destinationID, model.StatusPending, store.DestinationUpdate{
		Status: model.StatusQueued,
	}); err != nil {
		return err
	}

	if err := s.LogAttempt(ctx, model.MessageAttempt{
		MessageID:     dest.MessageID,
		DestinationID: dest.ID,
		AttemptNumber: nextAttempt,
		Status:        model.StatusQueued,
		RequestedBy:   model.RequestedByUser,
	}); err != nil {
		return err
	}

	return q.Publish(ctx, model.QueueItem{
		MessageID:     dest.MessageID,
		DestinationID: dest.ID,
		Platform:      dest.Platform,
		AttemptNumber: dest.AttemptCount,
		MaxAttempts:   routing.MaxAttempts(),
		RequestedBy:   model.RequestedByUser,
	})
}

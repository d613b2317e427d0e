// Package dispatch carries one destination through a single delivery
// attempt: load its current state, call the platform adapter, and
// record the outcome. It is the only place that decides whether a
// failure is worth retrying.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/model"
	"chatdispatch/internal/observability"
	"chatdispatch/internal/routing"
	"chatdispatch/internal/store"
	"chatdispatch/internal/tokens"

	"go.uber.org/zap"
)

// Dispatcher resolves and executes a single delivery attempt. It does
// not publish to the queue itself: a retryable failure is left in
// StatusRetrying for the retry Sweeper to pick back up once its
// backoff window elapses.
type Dispatcher struct {
	store    *store.Store
	tokens   *tokens.Service
	adapters *adapter.Registry
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func New(s *store.Store, t *tokens.Service, adapters *adapter.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: s, tokens: t, adapters: adapters, logger: logger}
}

// WithMetrics attaches a Metrics instance the dispatcher reports
// delivery outcomes to. Optional: a Dispatcher built with New alone
// still works, it just doesn't publish Prometheus series.
func (d *Dispatcher) WithMetrics(m *observability.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// HandleItem runs the full delivery protocol for one queued item:
// resolve the destination and its token, transition to InFlight, call
// the adapter, and record success, a scheduled retry, or a terminal
// failure. It returns an error only when the item should be redelivered
// by the queue itself (e.g. a failed store read or write; losing a
// concurrent-update race is not an error and returns nil); adapter-level
// failures are always handled internally and never surfaced as an
// error so the caller acks the queue message.
func (d *Dispatcher) HandleItem(ctx context.Context, item model.QueueItem) error {
	dest, err := d.store.GetDestination(ctx, item.DestinationID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			d.logger.Warn("dispatch: destination vanished, dropping item", zap.String("destination_id", item.DestinationID))
			return nil
		}
		return fmt.Errorf("dispatch: load destination: %w", err)
	}

	if dest.Status.Terminal() {
		d.logger.Debug("dispatch: destination already terminal, skipping redelivery",
			zap.String("destination_id", dest.ID), zap.String("status", string(dest.Status)))
		return nil
	}

	msg, err := d.store.GetMessage(ctx, item.MessageID)
	if err != nil {
		return fmt.Errorf("dispatch: load message: %w", err)
	}

	requestedBy := item.RequestedBy
	if requestedBy == "" {
		requestedBy = model.RequestedBySystem
	}

	token, err := d.tokens.GetActive(ctx, msg.UserID, dest.Platform)
	if err != nil {
		return d.failTerminal(ctx, dest, item.AttemptNumber+1, fmt.Sprintf("no active token: %v", err), requestedBy)
	}

	fromStatus := dest.Status
	attemptNumber := item.AttemptNumber + 1
	now := time.Now().UTC()
	if err := d.store.UpdateDestination(ctx, dest.ID, fromStatus, store.DestinationUpdate{
		Status:        model.StatusInFlight,
		AttemptCount:  &attemptNumber,
		LastAttemptAt: &now,
	}); err != nil {
		if errors.Is(err, model.ErrConcurrentUpdate) {
			d.logger.Debug("dispatch: lost race to claim destination", zap.String("destination_id", dest.ID))
			return nil
		}
		return fmt.Errorf("dispatch: claim destination: %w", err)
	}

	dest.Status = model.StatusInFlight

	if err := d.store.LogAttempt(ctx, model.MessageAttempt{
		MessageID:     msg.ID,
		DestinationID: dest.ID,
		AttemptNumber: attemptNumber,
		Status:        model.StatusInFlight,
		RequestedBy:   requestedBy,
	}); err != nil {
		d.logger.Error("dispatch: failed to log attempt start", zap.Error(err))
	}

	a, err := d.adapters.Get(dest.Platform)
	if err != nil {
		return d.failTerminal(ctx, dest, attemptNumber, err.Error(), requestedBy)
	}

	sendStart := time.Now()
	sent, sendErr := a.Send(ctx, token.AccessToken, dest.ChatID, msg.Payload)
	if d.metrics != nil {
		d.metrics.DeliveryDuration.WithLabelValues(string(dest.Platform)).Observe(time.Since(sendStart).Seconds())
	}
	if sendErr == nil {
		return d.succeed(ctx, dest, attemptNumber, sent, requestedBy)
	}

	var adapterErr *adapter.Error
	if errors.As(sendErr, &adapterErr) && !adapterErr.Retryable() {
		return d.failTerminal(ctx, dest, attemptNumber, adapterErr.Error(), requestedBy)
	}

	return d.scheduleRetry(ctx, dest, attemptNumber, sendErr, requestedBy)
}

func (d *Dispatcher) succeed(ctx context.Context, dest model.MessageDestination, attemptNumber int, sent adapter.SentMessage, requestedBy model.RequestedBy) error {
	sentAt := sent.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	if err := d.store.UpdateDestination(ctx, dest.ID, model.StatusInFlight, store.DestinationUpdate{
		Status: model.StatusSent,
		SentAt: &sentAt,
	}); err != nil && !errors.Is(err, model.ErrConcurrentUpdate) {
		return fmt.Errorf("dispatch: mark sent: %w", err)
	}

	if err := d.store.LogAttempt(ctx, model.MessageAttempt{
		MessageID:     dest.MessageID,
		DestinationID: dest.ID,
		AttemptNumber: attemptNumber,
		Status:        model.StatusSent,
		RequestedBy:   requestedBy,
	}); err != nil {
		d.logger.Error("dispatch: failed to log success attempt", zap.Error(err))
	}

	if d.metrics != nil {
		d.metrics.DestinationsSentTotal.WithLabelValues(string(dest.Platform)).Inc()
	}

	d.logger.Info("destination sent",
		zap.String("destination_id", dest.ID), zap.String("platform_message_id", sent.PlatformMessageID))
	return nil
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, dest model.MessageDestination, attemptNumber int, cause error, requestedBy model.RequestedBy) error {
	reason := cause.Error()

	if !routing.ShouldRetry(attemptNumber) {
		return d.failTerminal(ctx, dest, attemptNumber, reason, requestedBy)
	}

	if err := d.store.UpdateDestination(ctx, dest.ID, model.StatusInFlight, store.DestinationUpdate{
		Status:      model.StatusRetrying,
		ErrorReason: &reason,
	}); err != nil && !errors.Is(err, model.ErrConcurrentUpdate) {
		return fmt.Errorf("dispatch: mark retrying: %w", err)
	}

	if err := d.store.LogAttempt(ctx, model.MessageAttempt{
		MessageID:     dest.MessageID,
		DestinationID: dest.ID,
		AttemptNumber: attemptNumber,
		Status:        model.StatusRetrying,
		StatusReason:  &reason,
		RequestedBy:   requestedBy,
	}); err != nil {
		d.logger.Error("dispatch: failed to log retry attempt", zap.Error(err))
	}

	if d.metrics != nil {
		d.metrics.RetryAttemptsTotal.WithLabelValues(string(dest.Platform)).Inc()
	}

	d.logger.Warn("destination scheduled for retry",
		zap.String("destination_id", dest.ID), zap.Int("attempt", attemptNumber), zap.String("reason", reason))
	return nil
}

func (d *Dispatcher) failTerminal(ctx context.Context, dest model.MessageDestination, attemptNumber int, reason string, requestedBy model.RequestedBy) error {
	if err := d.store.UpdateDestination(ctx, dest.ID, dest.Status, store.DestinationUpdate{
		Status:      model.StatusFailed,
		ErrorReason: &reason,
	}); err != nil && !errors.Is(err, model.ErrConcurrentUpdate) {
		return fmt.Errorf("dispatch: mark failed: %w", err)
	}

	if err := d.store.LogAttempt(ctx, model.MessageAttempt{
		MessageID:     dest.MessageID,
		DestinationID: dest.ID,
		AttemptNumber: attemptNumber,
		Status:        model.StatusFailed,
		StatusReason:  &reason,
		RequestedBy:   requestedBy,
	}); err != nil {
		d.logger.Error("dispatch: failed to log terminal attempt", zap.Error(err))
	}

	if d.metrics != nil {
		d.metrics.DestinationsFailedTotal.WithLabelValues(string(dest.Platform)).Inc()
	}

	d.logger.Error("destination permanently failed",
		zap.String("destination_id", dest.ID), zap.String("reason", reason))
	return nil
}

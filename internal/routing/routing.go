// Package routing turns a newly saved message into the domain events
// that drive queue publication, and holds the retry backoff schedule
// shared by the dispatcher and the sweeper. Everything here is pure: no
// I/O, so the full event sequence for a send is reproducible in tests.
package routing

import (
	"time"

	"chatdispatch/internal/model"
)

// EventKind discriminates the domain events a send or dispatch attempt
// can produce.
type EventKind string

const (
	EventMessageCreated        EventKind = "message_created"
	EventMessageQueued         EventKind = "message_queued"
	EventMessageProcessing     EventKind = "message_processing"
	EventMessageSent           EventKind = "message_sent"
	EventMessageFailed         EventKind = "message_failed"
	EventMessageRetryScheduled EventKind = "message_retry_scheduled"
)

// Event is an occurrence in a message's lifecycle, timestamped at the
// moment it was raised.
type Event struct {
	Kind          EventKind
	MessageID     string
	DestinationID string
	OccurredAt    time.Time
}

// RouteMessage emits one MessageCreated event followed by one
// MessageQueued event per destination, mirroring how a single send
// request fans out to independent per-platform queue entries.
func RouteMessage(msg model.Message, destinations []model.MessageDestination, now time.Time) []Event {
	events := make([]Event, 0, len(destinations)+1)
	events = append(events, Event{Kind: EventMessageCreated, MessageID: msg.ID, OccurredAt: now})
	for _, d := range destinations {
		events = append(events, Event{
			Kind:          EventMessageQueued,
			MessageID:     msg.ID,
			DestinationID: d.ID,
			OccurredAt:    now,
		})
	}
	return events
}

const jitterFraction = 0.10

// baseDelay is the delay for an attemptCount of 0; each further attempt
// doubles it until the exponent hits retryExponentCap. maxAttempts bounds how many
// total attempts (including the first) a destination gets before it is
// marked permanently failed. All three default to the values in
// retry.base_delay_seconds / retry.max_backoff_doublings /
// retry.max_attempts and can be overridden once at startup by Configure.
var (
	baseDelay        = 60 * time.Second
	retryExponentCap = 4
	maxAttempts      = 3
)

// Configure overrides the retry schedule from loaded configuration. It
// is meant to be called once at process startup, before any worker or
// sweeper goroutine reads these values.
func Configure(maxAttemptsCfg int, baseDelayCfg time.Duration, maxBackoffDoublingsCfg int) {
	if maxAttemptsCfg > 0 {
		maxAttempts = maxAttemptsCfg
	}
	if baseDelayCfg > 0 {
		baseDelay = baseDelayCfg
	}
	if maxBackoffDoublingsCfg > 0 {
		retryExponentCap = maxBackoffDoublingsCfg
	}
}

// ComputeRetryDelay returns the delay before the next attempt given how
// many attempts have already been made. attemptCount=1 after the first
// failure yields 2*baseDelay; it doubles up to the cap.
//
//	delay = baseDelay * 2^min(attemptCount, retryExponentCap)
//
// jitter is supplied by the caller as a value in [0,1) (from a seeded
// RNG) so the function itself stays deterministic and testable.
func ComputeRetryDelay(attemptCount int, jitter float64) time.Duration {
	exponent := attemptCount
	if exponent > retryExponentCap {
		exponent = retryExponentCap
	}
	delay := baseDelay * time.Duration(1<<uint(exponent))

	// jitter in [0,1) maps to a multiplier in [1-jitterFraction, 1+jitterFraction)
	multiplier := 1 - jitterFraction + 2*jitterFraction*jitter
	return time.Duration(float64(delay) * multiplier)
}

// ShouldRetry reports whether a destination that just failed should be
// scheduled again, based purely on attempt count.
func ShouldRetry(attemptCount int) bool {
	return attemptCount < maxAttempts
}

// MaxAttempts exposes the retry ceiling so dispatch/store code doesn't
// duplicate the constant.
func MaxAttempts() int { return maxAttempts }

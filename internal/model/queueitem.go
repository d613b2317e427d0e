package model

import "time"

// QueueItem is the transient record carried on the work queue: enough to
// locate the destination without re-reading the full message payload.
type QueueItem struct {
	MessageID     string      `json:"message_id"`
	DestinationID string      `json:"destination_id"`
	Platform      Platform    `json:"platform"`
	AttemptNumber int         `json:"attempt_number"`
	MaxAttempts   int         `json:"max_attempts"`
	ScheduledAt   *time.Time  `json:"scheduled_at,omitempty"`
	RequestedBy   RequestedBy `json:"requested_by"`
}

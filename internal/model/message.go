package model

import "time"

// Message is the immutable body a user sends. It owns one or more
// Destinations, each tracked independently through the delivery state
// machine.
type Message struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Payload   Payload   `json:"payload" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MessageDestination is one (platform, chat_id) delivery target of a
// Message, carrying its own status and attempt history.
type MessageDestination struct {
	ID            string     `json:"destination_id" db:"id"`
	MessageID     string     `json:"message_id" db:"message_id"`
	Platform      Platform   `json:"platform" db:"platform"`
	ChatID        string     `json:"chat_id" db:"chat_id"`
	Status        Status     `json:"status" db:"status"`
	AttemptCount  int        `json:"attempt_count" db:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	SentAt        *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ErrorReason   *string    `json:"error_reason,omitempty" db:"error_reason"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// MessageAttempt is an append-only log entry: one adapter invocation (or
// invocation outcome) for a single destination.
type MessageAttempt struct {
	ID            string      `json:"id" db:"id"`
	MessageID     string      `json:"message_id" db:"message_id"`
	DestinationID string      `json:"destination_id" db:"destination_id"`
	AttemptNumber int         `json:"attempt_number" db:"attempt_number"`
	Status        Status      `json:"status" db:"status"`
	StatusReason  *string     `json:"status_reason,omitempty" db:"status_reason"`
	RequestedBy   RequestedBy `json:"requested_by" db:"requested_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// MessageDetail is the read-side aggregate returned to callers: a
// Message with its ordered destinations.
type MessageDetail struct {
	Message      Message              `json:"-"`
	ID           string               `json:"id"`
	Payload      Payload              `json:"payload"`
	Destinations []MessageDestination `json:"destinations"`
	CreatedAt    time.Time            `json:"created_at"`
}

// MessageSummary is the list-view projection used by history listings.
type MessageSummary struct {
	ID           string    `json:"id"`
	Payload      Payload   `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
	Destinations int       `json:"destination_count"`
}

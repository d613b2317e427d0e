// Package store persists messages, destinations, and attempts in
// Postgres. Destination transitions use conditional updates keyed on the
// expected current status so two writers racing on the same row never
// silently clobber each other.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatdispatch/internal/db"
	"chatdispatch/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store struct {
	db     *db.PostgresDB
	logger *zap.Logger
}

func New(pg *db.PostgresDB, logger *zap.Logger) *Store {
	return &Store{db: pg, logger: logger}
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessageWithDestinations inserts a message and its destinations in a
// single transaction; destinations are created with StatusPending.
func (s *Store) SaveMessageWithDestinations(ctx context.Context, msg model.Message, destinations []model.MessageDestination) ([]model.MessageDestination, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, payload_kind, payload_text, payload_format, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.UserID, msg.Payload.Kind, msg.Payload.Text, msg.Payload.Format, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}

	saved := make([]model.MessageDestination, len(destinations))
	for i, d := range destinations {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.MessageID = msg.ID
		d.Status = model.StatusPending
		d.UpdatedAt = msg.CreatedAt

		_, err = tx.ExecContext(ctx,
			`INSERT INTO message_destinations
				(id, message_id, ordinal, platform, chat_id, status, attempt_count, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, 0, $7)`,
			d.ID, d.MessageID, i, d.Platform, d.ChatID, d.Status, d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("store: insert destination: %w", err)
		}
		saved[i] = d
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	s.logger.Info("message saved", zap.String("message_id", msg.ID), zap.Int("destinations", len(saved)))
	return saved, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (model.Message, error) {
	var msg model.Message
	var format sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, payload_kind, payload_text, payload_format, created_at
		 FROM messages WHERE id = $1`, id).
		Scan(&msg.ID, &msg.UserID, &msg.Payload.Kind, &msg.Payload.Text, &format, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, model.ErrNotFound
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("store: get message: %w", err)
	}
	msg.Payload.Format = model.TextFormat(format.String)
	return msg, nil
}

// listDestinations returns a message's destinations in the order they
// were submitted (insertion order), per get_message's ordering
// contract.
func (s *Store) listDestinations(ctx context.Context, messageID string) ([]model.MessageDestination, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, platform, chat_id, status, attempt_count, last_attempt_at, sent_at, error_reason, updated_at
		 FROM message_destinations WHERE message_id = $1 ORDER BY ordinal ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("store: list destinations: %w", err)
	}
	defer rows.Close()

	var out []model.MessageDestination
	for rows.Next() {
		var d model.MessageDestination
		if err := rows.Scan(&d.ID, &d.MessageID, &d.Platform, &d.ChatID, &d.Status, &d.AttemptCount,
			&d.LastAttemptAt, &d.SentAt, &d.ErrorReason, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan destination: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetMessageDetail(ctx context.Context, id string) (model.MessageDetail, error) {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return model.MessageDetail{}, err
	}
	destinations, err := s.listDestinations(ctx, id)
	if err != nil {
		return model.MessageDetail{}, err
	}
	return model.MessageDetail{
		Message:      msg,
		ID:           msg.ID,
		Payload:      msg.Payload,
		Destinations: destinations,
		CreatedAt:    msg.CreatedAt,
	}, nil
}

func (s *Store) GetDestination(ctx context.Context, id string) (model.MessageDestination, error) {
	var d model.MessageDestination
	err := s.db.QueryRowContext(ctx,
		`SELECT id, message_id, platform, chat_id, status, attempt_count, last_attempt_at, sent_at, error_reason, updated_at
		 FROM message_destinations WHERE id = $1`, id).
		Scan(&d.ID, &d.MessageID, &d.Platform, &d.ChatID, &d.Status, &d.AttemptCount,
			&d.LastAttemptAt, &d.SentAt, &d.ErrorReason, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MessageDestination{}, model.ErrNotFound
	}
	if err != nil {
		return model.MessageDestination{}, fmt.Errorf("store: get destination: %w", err)
	}
	return d, nil
}

// DestinationUpdate carries the fields a transition may set. Status is
// always written. Nil AttemptCount, LastAttemptAt and SentAt leave their
// columns unchanged; ErrorReason is written as given, so nil clears it.
type DestinationUpdate struct {
	Status        model.Status
	AttemptCount  *int
	LastAttemptAt *time.Time
	SentAt        *time.Time
	ErrorReason   *string
}

// UpdateDestination performs a conditional transition: the row is only
// touched when its current status still matches expectedStatus. Zero rows
// affected means a concurrent writer already moved it, surfaced as
// model.ErrConcurrentUpdate so the caller can reread and decide.
func (s *Store) UpdateDestination(ctx context.Context, id string, expectedStatus model.Status, update DestinationUpdate) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE message_destinations
		 SET status = $1,
		     attempt_count = COALESCE($2, attempt_count),
		     last_attempt_at = COALESCE($3, last_attempt_at),
		     sent_at = COALESCE($4, sent_at),
		     error_reason = $5,
		     updated_at = $6
		 WHERE id = $7 AND status = $8`,
		update.Status, update.AttemptCount, update.LastAttemptAt, update.SentAt, update.ErrorReason, now,
		id, expectedStatus)
	if err != nil {
		return fmt.Errorf("store: update destination: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrConcurrentUpdate
	}
	return nil
}

// ListMessagesByUser returns a page of history ordered newest-first.
// hasMore reports whether a further page exists beyond this one.
func (s *Store) ListMessagesByUser(ctx context.Context, userID string, limit int, before *time.Time) ([]model.MessageSummary, bool, error) {
	cutoff := time.Now().UTC()
	if before != nil {
		cutoff = *before
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.payload_kind, m.payload_text, m.payload_format, m.created_at,
		        (SELECT COUNT(*) FROM message_destinations d WHERE d.message_id = m.id)
		 FROM messages m
		 WHERE m.user_id = $1 AND m.created_at < $2
		 ORDER BY m.created_at DESC
		 LIMIT $3`, userID, cutoff, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []model.MessageSummary
	for rows.Next() {
		var summary model.MessageSummary
		var format sql.NullString
		if err := rows.Scan(&summary.ID, &summary.Payload.Kind, &summary.Payload.Text, &format,
			&summary.CreatedAt, &summary.Destinations); err != nil {
			return nil, false, fmt.Errorf("store: scan summary: %w", err)
		}
		summary.Payload.Format = model.TextFormat(format.String)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, nil
}

// FindPendingRetries returns destinations in StatusRetrying that have a
// last_attempt_at (the caller checks whether their backoff window has
// elapsed), plus destinations stuck in
// StatusPending since before pendingStaleBefore — the case where
// Execute's publish failed and the destination never made it onto the
// queue at all (spec.md §7: "the destination remains Pending, sweeper
// will recover"). The caller distinguishes the two by Status.
func (s *Store) FindPendingRetries(ctx context.Context, pendingStaleBefore time.Time, limit int) ([]model.MessageDestination, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, platform, chat_id, status, attempt_count, last_attempt_at, sent_at, error_reason, updated_at
		 FROM message_destinations
		 WHERE (status = $1 AND last_attempt_at IS NOT NULL)
		    OR (status = $2 AND updated_at < $3)
		 ORDER BY updated_at ASC
		 LIMIT $4`, model.StatusRetrying, model.StatusPending, pendingStaleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("store: find pending retries: %w", err)
	}
	defer rows.Close()

	var out []model.MessageDestination
	for rows.Next() {
		var d model.MessageDestination
		if err := rows.Scan(&d.ID, &d.MessageID, &d.Platform, &d.ChatID, &d.Status, &d.AttemptCount,
			&d.LastAttemptAt, &d.SentAt, &d.ErrorReason, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan retry candidate: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) LogAttempt(ctx context.Context, attempt model.MessageAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_attempts (id, message_id, destination_id, attempt_number, status, status_reason, requested_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		attempt.ID, attempt.MessageID, attempt.DestinationID, attempt.AttemptNumber,
		attempt.Status, attempt.StatusReason, attempt.RequestedBy, attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: log attempt: %w", err)
	}
	return nil
}

// GetAttempts returns a destination's attempt history newest first, per
// get_attempts's ordering contract.
func (s *Store) GetAttempts(ctx context.Context, destinationID string) ([]model.MessageAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, destination_id, attempt_number, status, status_reason, requested_by, created_at
		 FROM message_attempts WHERE destination_id = $1 ORDER BY attempt_number DESC`, destinationID)
	if err != nil {
		return nil, fmt.Errorf("store: get attempts: %w", err)
	}
	defer rows.Close()

	var out []model.MessageAttempt
	for rows.Next() {
		var a model.MessageAttempt
		if err := rows.Scan(&a.ID, &a.MessageID, &a.DestinationID, &a.AttemptNumber, &a.Status,
			&a.StatusReason, &a.RequestedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Package send implements the use case a caller invokes to dispatch a
// message: validate the request, persist the message and its
// destinations, route it into domain events, and publish one queue
// item per destination. Validation and token checks fail the send before
// anything is persisted; once persisted, a destination whose publish
// fails stays Pending for the retry sweeper and the send still succeeds.
package send

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/model"
	"chatdispatch/internal/queue"
	"chatdispatch/internal/routing"
	"chatdispatch/internal/store"
	"chatdispatch/internal/tokens"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxTextLength is the largest payload text a send accepts.
	MaxTextLength = 4096
	// MaxDestinations bounds fan-out for a single send request.
	MaxDestinations = 100
)

var (
	ErrEmptyContent   = errors.New("send: payload text must not be empty")
	ErrTextTooLong    = fmt.Errorf("send: payload text exceeds %d characters", MaxTextLength)
	ErrNoDestinations = errors.New("send: at least one destination is required")
	ErrTooManyDests   = fmt.Errorf("send: at most %d destinations are allowed", MaxDestinations)
	ErrInvalidChatID  = errors.New("send: chat_id is not valid for the platform")
	ErrEmptyChatID    = errors.New("send: chat_id must not be empty")
)

// DestinationRequest names one delivery target of a send.
type DestinationRequest struct {
	Platform model.Platform
	ChatID   string
}

// Request is everything needed to create a message and fan it out to
// its destinations.
type Request struct {
	UserID       string
	Text         string
	Format       model.TextFormat
	Destinations []DestinationRequest
}

type UseCase struct {
	store    *store.Store
	tokens   *tokens.Service
	queue    *queue.Queue
	adapters *adapter.Registry
	logger   *zap.Logger
}

func New(s *store.Store, t *tokens.Service, q *queue.Queue, adapters *adapter.Registry, logger *zap.Logger) *UseCase {
	return &UseCase{store: s, tokens: t, queue: q, adapters: adapters, logger: logger}
}

func (uc *UseCase) validate(req Request) error {
	if req.Text == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(req.Text) > MaxTextLength {
		return ErrTextTooLong
	}
	if len(req.Destinations) == 0 {
		return ErrNoDestinations
	}
	if len(req.Destinations) > MaxDestinations {
		return ErrTooManyDests
	}
	for _, d := range req.Destinations {
		if d.ChatID == "" {
			return ErrEmptyChatID
		}
		if !d.Platform.Valid() {
			return fmt.Errorf("send: %w: unknown platform %q", ErrInvalidChatID, d.Platform)
		}
		a, err := uc.adapters.Get(d.Platform)
		if err != nil {
			return err
		}
		if !a.ValidateChatID(d.ChatID) {
			return fmt.Errorf("send: %w: platform %q chat_id %q", ErrInvalidChatID, d.Platform, d.ChatID)
		}
	}
	return nil
}

// Execute validates, persists, routes, and publishes a single message.
// Destinations whose platform has no active token fail the whole send
// before anything is written, since a partially-registered send would
// leave destinations that can never succeed.
func (uc *UseCase) Execute(ctx context.Context, req Request) (model.MessageDetail, error) {
	if err := uc.validate(req); err != nil {
		return model.MessageDetail{}, err
	}

	for _, d := range req.Destinations {
		if _, err := uc.tokens.GetActive(ctx, req.UserID, d.Platform); err != nil {
			return model.MessageDetail{}, fmt.Errorf("send: destination %s/%s: %w", d.Platform, d.ChatID, err)
		}
	}

	now := time.Now().UTC()
	payload := model.Payload{Kind: "plain", Text: req.Text, Format: model.FormatPlain}
	if req.Format != "" && req.Format != model.FormatPlain {
		payload = model.FormattedPayload(req.Text, req.Format)
	}

	msg := model.Message{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Payload:   payload,
		CreatedAt: now,
	}

	destinations := make([]model.MessageDestination, len(req.Destinations))
	for i, d := range req.Destinations {
		destinations[i] = model.MessageDestination{
			Platform: d.Platform,
			ChatID:   d.ChatID,
		}
	}

	saved, err := uc.store.SaveMessageWithDestinations(ctx, msg, destinations)
	if err != nil {
		return model.MessageDetail{}, err
	}

	for _, evt := range routing.RouteMessage(msg, saved, now) {
		uc.logger.Debug("domain event",
			zap.String("kind", string(evt.Kind)),
			zap.String("message_id", evt.MessageID),
			zap.String("destination_id", evt.DestinationID))
	}

	for _, d := range saved {
		item := model.QueueItem{
			MessageID:     msg.ID,
			DestinationID: d.ID,
			Platform:      d.Platform,
			AttemptNumber: 0,
			MaxAttempts:   routing.MaxAttempts(),
			RequestedBy:   model.RequestedBySystem,
		}
		if err := uc.queue.Publish(ctx, item); err != nil {
			// One destination's publish failing doesn't stop the rest:
			// it stays Pending and the retry sweeper recovers it later.
			uc.logger.Error("send: failed to publish destination, leaving Pending for sweeper",
				zap.String("destination_id", d.ID), zap.Error(err))
			continue
		}
		if err := uc.store.UpdateDestination(ctx, d.ID, model.StatusPending, store.DestinationUpdate{
			Status: model.StatusQueued,
		}); err != nil {
			uc.logger.Error("send: failed to mark destination queued", zap.String("destination_id", d.ID), zap.Error(err))
		}
	}

	uc.logger.Info("message sent for dispatch",
		zap.String("message_id", msg.ID), zap.Int("destinations", len(saved)))

	return uc.store.GetMessageDetail(ctx, msg.ID)
}

// BatchRequest groups several independent sends issued together.
type BatchRequest struct {
	Sends []Request
}

// BatchResult pairs each request's outcome with its index so a caller
// can correlate failures back to the request that produced them.
type BatchResult struct {
	Detail model.MessageDetail
	Err    error
}

// ExecuteBatch runs each send independently; one failing send does not
// prevent the others from being processed.
func (uc *UseCase) ExecuteBatch(ctx context.Context, batch BatchRequest) []BatchResult {
	results := make([]BatchResult, len(batch.Sends))
	for i, req := range batch.Sends {
		detail, err := uc.Execute(ctx, req)
		results[i] = BatchResult{Detail: detail, Err: err}
	}
	return results
}

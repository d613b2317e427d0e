// Package api exposes the HTTP surface that fronts the send, store,
// and retry use cases. It is the one external collaborator the core
// dispatch pipeline needs to be exercised end to end; credential
// registration and inbound ingestion stay out of scope here same as
// everywhere else in this module.
package api

import (
	"errors"
	"strconv"
	"time"

	"chatdispatch/internal/auth"
	"chatdispatch/internal/model"
	"chatdispatch/internal/queue"
	"chatdispatch/internal/retry"
	"chatdispatch/internal/send"
	"chatdispatch/internal/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handlers struct {
	logger *zap.Logger
	store  *store.Store
	send   *send.UseCase
	queue  *queue.Queue
}

func NewHandlers(logger *zap.Logger, s *store.Store, sendUC *send.UseCase, q *queue.Queue) *Handlers {
	return &Handlers{logger: logger, store: s, send: sendUC, queue: q}
}

type destinationRequest struct {
	Platform string `json:"platform"`
	ChatID   string `json:"chat_id"`
}

type sendMessageRequest struct {
	Text         string               `json:"text"`
	Format       string               `json:"format"`
	Destinations []destinationRequest `json:"destinations"`
}

// SendMessage handles POST /v1/messages: validates and persists a
// message, fans it out across its destinations, and returns the
// detail view the caller can poll for status.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var body sendMessageRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	destinations := make([]send.DestinationRequest, len(body.Destinations))
	for i, d := range body.Destinations {
		destinations[i] = send.DestinationRequest{
			Platform: model.Platform(d.Platform),
			ChatID:   d.ChatID,
		}
	}

	req := send.Request{
		UserID:       session.UserID,
		Text:         body.Text,
		Format:       model.TextFormat(body.Format),
		Destinations: destinations,
	}

	detail, err := h.send.Execute(c.Context(), req)
	if err != nil {
		return h.respondSendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(detail)
}

func (h *Handlers) respondSendError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, send.ErrEmptyContent), errors.Is(err, send.ErrTextTooLong),
		errors.Is(err, send.ErrNoDestinations), errors.Is(err, send.ErrTooManyDests),
		errors.Is(err, send.ErrInvalidChatID), errors.Is(err, send.ErrEmptyChatID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrNoActiveToken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.Error("send message failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to send message"})
	}
}

// GetMessage handles GET /v1/messages/:id.
func (h *Handlers) GetMessage(c *fiber.Ctx) error {
	detail, err := h.store.GetMessageDetail(c.Context(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
	}
	if err != nil {
		h.logger.Error("get message failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load message"})
	}

	session, err := auth.SessionFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if detail.Message.UserID != session.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your message"})
	}
	return c.JSON(detail)
}

// ListMessages handles GET /v1/messages?limit=&before=, paginated
// newest-first history for the authenticated caller.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			before = &parsed
		}
	}

	summaries, hasMore, err := h.store.ListMessagesByUser(c.Context(), session.UserID, limit, before)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list messages"})
	}

	return c.JSON(fiber.Map{"messages": summaries, "has_more": hasMore})
}

// GetAttempts handles GET /v1/messages/:id/attempts: the attempt
// history across every destination of a message, grouped by
// destination for readability.
func (h *Handlers) GetAttempts(c *fiber.Ctx) error {
	detail, err := h.store.GetMessageDetail(c.Context(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
	}
	if err != nil {
		h.logger.Error("get attempts failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load message"})
	}

	session, err := auth.SessionFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if detail.Message.UserID != session.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your message"})
	}

	type destinationAttempts struct {
		DestinationID string                 `json:"destination_id"`
		Platform      model.Platform         `json:"platform"`
		Attempts      []model.MessageAttempt `json:"attempts"`
	}

	out := make([]destinationAttempts, 0, len(detail.Destinations))
	for _, d := range detail.Destinations {
		attempts, err := h.store.GetAttempts(c.Context(), d.ID)
		if err != nil {
			h.logger.Error("get attempts failed", zap.String("destination_id", d.ID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load attempts"})
		}
		out = append(out, destinationAttempts{DestinationID: d.ID, Platform: d.Platform, Attempts: attempts})
	}

	return c.JSON(fiber.Map{"destinations": out})
}

// RetryMessage handles POST /v1/messages/:id/retry: retries every
// destination of a message that is not Sent or Cancelled (Failed ones
// included) immediately.
func (h *Handlers) RetryMessage(c *fiber.Ctx) error {
	detail, err := h.store.GetMessageDetail(c.Context(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
	}
	if err != nil {
		h.logger.Error("retry message failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load message"})
	}

	session, err := auth.SessionFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if detail.Message.UserID != session.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your message"})
	}

	retried := make([]string, 0, len(detail.Destinations))
	for _, d := range detail.Destinations {
		if d.Status.Terminal() && d.Status != model.StatusFailed {
			continue
		}
		if err := retry.ManualRetry(c.Context(), h.store, h.queue, d.ID); err != nil {
			if errors.Is(err, model.ErrTerminalDestination) {
				continue
			}
			h.logger.Error("retry destination failed", zap.String("destination_id", d.ID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to retry destination"})
		}
		retried = append(retried, d.ID)
	}

	return c.JSON(fiber.Map{"retried_destinations": retried})
}

// RetryDestination handles POST /v1/destinations/:id/retry: retries a
// single destination immediately regardless of its backoff window.
func (h *Handlers) RetryDestination(c *fiber.Ctx) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	id := c.Params("id")

	dest, err := h.store.GetDestination(c.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "destination not found"})
	}
	if err != nil {
		h.logger.Error("retry destination failed", zap.String("destination_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to retry destination"})
	}
	msg, err := h.store.GetMessage(c.Context(), dest.MessageID)
	if err != nil {
		h.logger.Error("retry destination failed", zap.String("destination_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to retry destination"})
	}
	if msg.UserID != session.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your destination"})
	}

	err = retry.ManualRetry(c.Context(), h.store, h.queue, id)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"destination_id": id, "status": "queued"})
	case errors.Is(err, model.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "destination not found"})
	case errors.Is(err, model.ErrTerminalDestination):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.Error("retry destination failed", zap.String("destination_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to retry destination"})
	}
}

// HealthCheck handles GET /healthz: process liveness only, no
// dependency checks.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ReadyCheck handles GET /readyz: the process is ready to serve once
// its datastore and queue connections both answer.
func (h *Handlers) ReadyCheck(c *fiber.Ctx) error {
	if err := h.store.Health(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "reason": "database"})
	}
	if err := h.queue.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "reason": "queue"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

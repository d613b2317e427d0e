// Package queue durably hands destinations off to per-platform worker
// pools using NATS JetStream. Each platform gets its own subject and
// pull-based durable consumer so ack_wait/max_deliver enforce at-least-
// once delivery without the publisher tracking redelivery itself.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatdispatch/internal/model"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	streamName    = "DISPATCH"
	subjectPrefix = "messaging.outbound"
)

func subjectFor(platform model.Platform) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, platform)
}

func consumerName(platform model.Platform) string {
	return fmt.Sprintf("dispatch-%s", platform)
}

// Config controls redelivery behavior of the per-platform pull
// consumers that Subscribe creates: ack_wait, max_deliver and the
// fetch batch size.
type Config struct {
	AckWait    time.Duration
	MaxDeliver int
	PullBatch  int
}

func DefaultConfig() Config {
	return Config{
		AckWait:    30 * time.Second,
		MaxDeliver: 10,
		PullBatch:  32,
	}
}

type Queue struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
	cfg    Config
}

func New(natsURL string, cfg Config, logger *zap.Logger) (*Queue, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("chatdispatch"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: jetstream context: %w", err)
	}

	q := &Queue{conn: conn, js: js, logger: logger, cfg: cfg}
	if err := q.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureStream() error {
	_, err := q.js.StreamInfo(streamName)
	if err == nil {
		return nil
	}
	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("queue: add stream: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	q.conn.Close()
	return nil
}

func (q *Queue) HealthCheck(ctx context.Context) error {
	if q.conn.Status() != nats.CONNECTED {
		return fmt.Errorf("queue: nats not connected, status %v", q.conn.Status())
	}
	return nil
}

// Publish hands a destination to its platform's durable stream subject.
// Delivery is at-least-once: a consumer that never acks sees the item
// again after ack_wait, up to max_deliver times.
func (q *Queue) Publish(ctx context.Context, item model.QueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("queue: marshal item: %w", err)
	}

	_, err = q.js.Publish(subjectFor(item.Platform), data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("queue: publish: %w", err)
	}

	q.logger.Debug("queued destination",
		zap.String("message_id", item.MessageID),
		zap.String("destination_id", item.DestinationID),
		zap.String("platform", string(item.Platform)),
		zap.Int("attempt", item.AttemptNumber))
	return nil
}

// Handler processes one queue item. Returning nil acks it; returning an
// error naks it, so JetStream redelivers it (up to max_deliver times).
type Handler func(ctx context.Context, item model.QueueItem) error

// Subscribe starts a durable pull consumer for one platform and feeds
// items to handler until ctx is cancelled. It blocks the calling
// goroutine; callers run it in its own goroutine per platform worker
// pool.
func (q *Queue) Subscribe(ctx context.Context, platform model.Platform, handler Handler) error {
	sub, err := q.js.PullSubscribe(subjectFor(platform), consumerName(platform),
		nats.AckWait(q.cfg.AckWait),
		nats.MaxDeliver(q.cfg.MaxDeliver),
		nats.ManualAck())
	if err != nil {
		return fmt.Errorf("queue: pull subscribe %s: %w", platform, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(q.cfg.PullBatch, nats.MaxWait(2*time.Second))
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				continue
			}
			q.logger.Error("queue: fetch failed", zap.String("platform", string(platform)), zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var item model.QueueItem
			if err := json.Unmarshal(msg.Data, &item); err != nil {
				q.logger.Error("queue: malformed item, dropping", zap.Error(err))
				msg.Ack()
				continue
			}

			if err := handler(ctx, item); err != nil {
				q.logger.Warn("queue: handler failed, will redeliver",
					zap.String("destination_id", item.DestinationID), zap.Error(err))
				msg.Nak()
				continue
			}
			msg.Ack()
		}
	}
}

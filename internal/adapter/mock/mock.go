// Package mock is a deterministic stand-in adapter used in development
// and tests: no network calls, outcome derived from a hash of the chat
// ID and payload text so the same destination and text always behave
// the same way.
package mock

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/model"

	"go.uber.org/zap"
)

type Adapter struct {
	platform    model.Platform
	logger      *zap.Logger
	successRate float64
	latency     time.Duration
}

func New(platform model.Platform, logger *zap.Logger) *Adapter {
	return &Adapter{
		platform:    platform,
		logger:      logger,
		successRate: 0.9,
		latency:     10 * time.Millisecond,
	}
}

func (a *Adapter) Platform() model.Platform { return a.platform }

func (a *Adapter) ValidateChatID(chatID string) bool {
	return chatID != ""
}

func (a *Adapter) Send(ctx context.Context, accessToken, chatID string, payload model.Payload) (adapter.SentMessage, error) {
	select {
	case <-time.After(a.latency):
	case <-ctx.Done():
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindNetwork, "context cancelled", ctx.Err())
	}

	hash := md5.Sum([]byte(chatID + payload.Text))
	outcome := float64(hash[0]) / 255.0

	if outcome >= a.successRate {
		a.logger.Debug("mock adapter: simulated failure",
			zap.String("platform", string(a.platform)), zap.String("chat_id", chatID))
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindNetwork, "simulated transient failure", nil)
	}

	a.logger.Debug("mock adapter: simulated send",
		zap.String("platform", string(a.platform)), zap.String("chat_id", chatID))
	return adapter.SentMessage{
		PlatformMessageID: "mock-" + hex.EncodeToString(hash[:])[:8],
		SentAt:            time.Now().UTC(),
	}, nil
}

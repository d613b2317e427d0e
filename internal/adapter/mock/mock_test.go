package mock

import (
	"context"
	"testing"

	"chatdispatch/internal/model"

	"go.uber.org/zap"
)

func TestAdapter_Platform(t *testing.T) {
	a := New(model.PlatformTelegram, zap.NewNop())
	if a.Platform() != model.PlatformTelegram {
		t.Errorf("Platform() = %q, want telegram", a.Platform())
	}
}

func TestAdapter_Send_Deterministic(t *testing.T) {
	a := New(model.PlatformVK, zap.NewNop())
	payload := model.PlainPayload("hello")

	first, firstErr := a.Send(context.Background(), "tok", "chat-1", payload)
	second, secondErr := a.Send(context.Background(), "tok", "chat-1", payload)

	if (firstErr == nil) != (secondErr == nil) {
		t.Fatalf("outcome not deterministic for same chat/payload: err1=%v err2=%v", firstErr, secondErr)
	}
	if firstErr == nil && first.PlatformMessageID != second.PlatformMessageID {
		t.Errorf("PlatformMessageID differs across identical calls: %q vs %q", first.PlatformMessageID, second.PlatformMessageID)
	}
}

func TestAdapter_Send_RespectsContextCancellation(t *testing.T) {
	a := New(model.PlatformMAX, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Send(ctx, "tok", "chat-1", model.PlainPayload("hi"))
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

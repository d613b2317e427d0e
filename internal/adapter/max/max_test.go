package max

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/model"
)

func TestValidateChatID(t *testing.T) {
	a := New(nil)
	if !a.ValidateChatID("opaque-chat-1") {
		t.Error("ValidateChatID() = false for non-empty id, want true")
	}
	if a.ValidateChatID("") {
		t.Error("ValidateChatID() = true for empty id, want false")
	}
}

func TestSend_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"timestamp":1700000000000}}`))
	}))
	defer server.Close()

	a := New(server.Client())
	a.baseURL = server.URL

	msg, err := a.Send(context.Background(), "tok", "chat-1", model.PlainPayload("hi"))
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if msg.PlatformMessageID != "1700000000000" {
		t.Errorf("PlatformMessageID = %q, want 1700000000000", msg.PlatformMessageID)
	}
}

func TestSend_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"not_found","message_error":"chat not found"}`))
	}))
	defer server.Close()

	a := New(server.Client())
	a.baseURL = server.URL

	_, err := a.Send(context.Background(), "tok", "chat-1", model.PlainPayload("hi"))
	adapterErr, ok := err.(*adapter.Error)
	if !ok {
		t.Fatalf("error is not *adapter.Error: %v", err)
	}
	if adapterErr.Kind != adapter.ErrorKindInvalidChatID {
		t.Errorf("Kind = %q, want invalid_chat_id", adapterErr.Kind)
	}
}

func TestSend_EmptyChatID(t *testing.T) {
	a := New(nil)
	_, err := a.Send(context.Background(), "tok", "", model.PlainPayload("hi"))
	adapterErr, ok := err.(*adapter.Error)
	if !ok {
		t.Fatalf("error is not *adapter.Error: %v", err)
	}
	if adapterErr.Kind != adapter.ErrorKindInvalidChatID {
		t.Errorf("Kind = %q, want invalid_chat_id", adapterErr.Kind)
	}
}

// Package max sends messages through the MAX messenger HTTP API. MAX
// has no published Go or Rust SDK in wide use, so this talks to its
// REST endpoint directly rather than wrapping a client library.
package max

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/model"
)

const defaultBaseURL = "https://botapi.max.ru"

type Adapter struct {
	httpClient *http.Client
	baseURL    string
}

func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{httpClient: httpClient, baseURL: defaultBaseURL}
}

func (a *Adapter) Platform() model.Platform { return model.PlatformMAX }

// ValidateChatID treats the MAX chat identifier as an opaque non-empty
// string; MAX does not publish a format constraint on it.
func (a *Adapter) ValidateChatID(chatID string) bool {
	return chatID != ""
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	Message struct {
		Timestamp int64 `json:"timestamp"`
	} `json:"message"`
	Code        string `json:"code"`
	Description string `json:"message_error"`
}

func (a *Adapter) Send(ctx context.Context, accessToken, chatID string, payload model.Payload) (adapter.SentMessage, error) {
	if !a.ValidateChatID(chatID) {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindInvalidChatID, "chat_id must not be empty", nil)
	}

	encoded, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: payload.Text})
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindUnknown, "marshal request", err)
	}

	url := fmt.Sprintf("%s/messages?access_token=%s", a.baseURL, accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindUnknown, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindNetwork, "read response", err)
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindUnknown, "decode response", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return adapter.SentMessage{
			PlatformMessageID: fmt.Sprintf("%d", parsed.Message.Timestamp),
			SentAt:            time.UnixMilli(parsed.Message.Timestamp).UTC(),
		}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindAuth, parsed.Description, nil)
	case http.StatusTooManyRequests:
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindRateLimit, parsed.Description, nil)
	case http.StatusNotFound:
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindInvalidChatID, parsed.Description, nil)
	default:
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindAPI, parsed.Description, nil)
	}
}

// Package telegram sends messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/model"
)

const defaultBaseURL = "https://api.telegram.org"

// maxMessageLength matches Telegram's documented text message limit.
const maxMessageLength = 4096

var usernameChatID = regexp.MustCompile(`^@[A-Za-z0-9_]+$`)
var numericChatID = regexp.MustCompile(`^-?[0-9]+$`)

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

func (a *Adapter) Platform() model.Platform { return model.PlatformTelegram }

// ValidateChatID accepts a numeric chat ID (which may be negative for
// group chats) or an @username handle.
func (a *Adapter) ValidateChatID(chatID string) bool {
	return numericChatID.MatchString(chatID) || usernameChatID.MatchString(chatID)
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool `json:"ok"`
	ErrorCode   int  `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int `json:"message_id"`
		Date      int64 `json:"date"`
	} `json:"result"`
}

func (a *Adapter) Send(ctx context.Context, accessToken, chatID string, payload model.Payload) (adapter.SentMessage, error) {
	if !a.ValidateChatID(chatID) {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindInvalidChatID, "chat_id must be numeric or an @username", nil)
	}
	if utf8.RuneCountInString(payload.Text) > maxMessageLength {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindMessageTooLong, fmt.Sprintf("text exceeds %d characters", maxMessageLength), nil)
	}

	body := sendMessageRequest{ChatID: chatID, Text: payload.Text}
	switch payload.EffectiveFormat() {
	case model.FormatMarkdown:
		body.ParseMode = "Markdown"
	case model.FormatHTML:
		body.ParseMode = "HTML"
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindUnknown, "marshal request", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.baseURL, accessToken)
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

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindAuth, parsed.Description, nil)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindRateLimit, parsed.Description, nil)
	}
	if !parsed.OK {
		if strings.Contains(strings.ToLower(parsed.Description), "chat not found") {
			return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindInvalidChatID, parsed.Description, nil)
		}
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindAPI, parsed.Description, nil)
	}

	return adapter.SentMessage{
		PlatformMessageID: fmt.Sprintf("%d", parsed.Result.MessageID),
		SentAt:            time.Unix(parsed.Result.Date, 0).UTC(),
	}, nil
}

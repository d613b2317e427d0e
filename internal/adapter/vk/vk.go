// Package vk sends messages through the VK messages.send API.
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/model"

	"github.com/google/uuid"
)

const (
	defaultEndpoint = "https://api.vk.com/method/messages.send"
	apiVersion      = "5.199"
)

var peerIDPattern = regexp.MustCompile(`^[0-9]+$`)

var (
	markdownRunes = regexp.MustCompile("[*`_]")
	htmlTags      = regexp.MustCompile(`<[^>]+>`)
)

type Adapter struct {
	httpClient *http.Client
	endpoint   string
}

func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{httpClient: httpClient, endpoint: defaultEndpoint}
}

func (a *Adapter) Platform() model.Platform { return model.PlatformVK }

// ValidateChatID requires a positive numeric peer ID; VK has no
// username-style addressing for message delivery.
func (a *Adapter) ValidateChatID(chatID string) bool {
	if !peerIDPattern.MatchString(chatID) {
		return false
	}
	n, err := strconv.Atoi(chatID)
	return err == nil && n > 0
}

// formatMessageForVK strips markdown and HTML markup since VK has no
// rich-text parse mode for plain chat messages.
func formatMessageForVK(payload model.Payload) string {
	text := payload.Text
	switch payload.EffectiveFormat() {
	case model.FormatMarkdown:
		text = markdownRunes.ReplaceAllString(text, "")
	case model.FormatHTML:
		text = htmlTags.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

type sendResponse struct {
	Response int `json:"response"`
	Error    struct {
		ErrorCode int    `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
	} `json:"error"`
}

// VK error codes relevant to retry classification.
const (
	errCodeAuthFailed     = 5
	errCodeInvalidParams  = 100
	errCodeTooManyRequests = 6
	errCodeAccessDenied   = 7
	errCodeUserNotFound   = 901
)

func (a *Adapter) Send(ctx context.Context, accessToken, chatID string, payload model.Payload) (adapter.SentMessage, error) {
	if !a.ValidateChatID(chatID) {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindInvalidChatID, "chat_id must be a positive peer id", nil)
	}

	text := formatMessageForVK(payload)

	form := url.Values{}
	form.Set("access_token", accessToken)
	form.Set("v", apiVersion)
	form.Set("peer_id", chatID)
	form.Set("message", text)
	form.Set("random_id", strconv.FormatInt(int64(uuid.New().ID()), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindUnknown, "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindNetwork, "read response", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindUnknown, "decode response", err)
	}

	if parsed.Error.ErrorCode != 0 {
		switch parsed.Error.ErrorCode {
		case errCodeAuthFailed, errCodeAccessDenied:
			return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindAuth, parsed.Error.ErrorMsg, nil)
		case errCodeTooManyRequests:
			return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindRateLimit, parsed.Error.ErrorMsg, nil)
		case errCodeInvalidParams, errCodeUserNotFound:
			return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindInvalidChatID, parsed.Error.ErrorMsg, nil)
		default:
			return adapter.SentMessage{}, adapter.NewError(adapter.ErrorKindAPI, fmt.Sprintf("vk error %d: %s", parsed.Error.ErrorCode, parsed.Error.ErrorMsg), nil)
		}
	}

	return adapter.SentMessage{
		PlatformMessageID: strconv.Itoa(parsed.Response),
		SentAt:            time.Now().UTC(),
	}, nil
}

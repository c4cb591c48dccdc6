// Package telegram implements a minimal Telegram Bot API client: long-poll
// update fetching and plain text sending. Retry policy for the polling loop
// lives with the caller; this client only retries transient network errors
// inside its HTTP transport.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yury-yury/telegram-bot/core/logger"
	"log/slog"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// getUpdates may legitimately block for the whole long-poll window,
	// so its request deadline is the window plus this slack.
	longPollSlack = 10 * time.Second

	sendTimeout = 10 * time.Second
)

// Client talks to the Telegram Bot API on behalf of a single bot token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient constructs a Client for the given bot token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    buildHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// GetUpdates long-polls the API for updates starting at offset. The call
// blocks server-side up to timeoutSeconds when no updates are pending and
// returns an empty slice on timeout.
func (c *Client) GetUpdates(ctx context.Context, offset, timeoutSeconds int) ([]Update, error) {
	if timeoutSeconds < 0 {
		timeoutSeconds = 0
	}
	deadline := time.Duration(timeoutSeconds)*time.Second + longPollSlack
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("timeout", strconv.Itoa(timeoutSeconds))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getUpdates")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}

	start := time.Now()
	raw, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}

	updates, err := decodeUpdates(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}

	if len(updates) > 0 || logger.ShouldSampleDebug() {
		logger.Debug(ctx, "tg", "updates.fetched",
			slog.String("status", "ok"),
			slog.Int("offset", offset),
			slog.Int("batch", len(updates)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return updates, nil
}

// SendMessage sends plain text to the chat and returns the created message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return Message{}, fmt.Errorf("sendMessage: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := c.do(req)
	if err != nil {
		return Message{}, fmt.Errorf("sendMessage: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("sendMessage: decode result: %w", err)
	}
	return msg, nil
}

// do executes the request and unwraps the Bot API envelope.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Code: code, Description: envelope.Description}
	}
	return envelope.Result, nil
}

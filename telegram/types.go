package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yury-yury/telegram-bot/core/logger"
	"log/slog"
)

// Update is a single element of the getUpdates result. Message is nil for
// update kinds this bot does not handle (edits, callbacks and so on).
type Update struct {
	ID      int      `json:"update_id"`
	Message *Message `json:"message"`
}

// Message is an inbound or outbound chat message. Unknown upstream fields
// are dropped on decode.
type Message struct {
	ID   int64  `json:"message_id"`
	Date int64  `json:"date"`
	Text string `json:"text"`
	From *User  `json:"from"`
	Chat Chat   `json:"chat"`
}

// User describes the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat describes the chat a message belongs to.
type Chat struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
	Type      string `json:"type"`
}

// APIError is a non-ok response from the Telegram Bot API.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api: %s (code %d)", e.Description, e.Code)
}

// apiResponse is the common Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// decodeUpdates converts the raw getUpdates result into typed updates.
// A malformed element is skipped and logged; it never fails the batch.
func decodeUpdates(ctx context.Context, raw json.RawMessage) ([]Update, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}

	updates := make([]Update, 0, len(items))
	for _, item := range items {
		var upd Update
		if err := json.Unmarshal(item, &upd); err != nil {
			logger.Warn(ctx, "tg", "update.decode_skip",
				slog.String("status", "skip"),
				slog.String("err", err.Error()),
			)
			continue
		}
		if upd.ID == 0 {
			logger.Warn(ctx, "tg", "update.decode_skip",
				slog.String("status", "skip"),
				slog.String("err", "missing update_id"),
			)
			continue
		}
		updates = append(updates, upd)
	}
	return updates, nil
}

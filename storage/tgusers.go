package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const tgUserColumns = "chat_id, user_id, tg_user_id, username, verification_code"

// GetOrCreateTgUser resolves the identity row for a chat, creating it on
// first contact. Concurrent calls for the same chat id never produce a
// duplicate row: the insert is ON CONFLICT DO NOTHING and the follow-up
// select reads whichever row won.
func (s *Storage) GetOrCreateTgUser(ctx context.Context, chatID, tgUserID int64, username string) (TgUser, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tg_users (chat_id, tg_user_id, username)
		 VALUES ($1, NULLIF($2, 0), NULLIF($3, ''))
		 ON CONFLICT (chat_id) DO NOTHING`,
		chatID, tgUserID, username,
	)
	if err != nil {
		return TgUser{}, fmt.Errorf("insert tg_user %d: %w", chatID, err)
	}

	var u TgUser
	err = s.db.GetContext(ctx, &u,
		`SELECT `+tgUserColumns+` FROM tg_users WHERE chat_id = $1`, chatID)
	if err != nil {
		return TgUser{}, fmt.Errorf("select tg_user %d: %w", chatID, err)
	}
	return u, nil
}

// UpdateVerificationCode stores a freshly issued code for the chat,
// invalidating any previous one.
func (s *Storage) UpdateVerificationCode(ctx context.Context, chatID int64, code string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tg_users SET verification_code = $2 WHERE chat_id = $1`, chatID, code)
	if err != nil {
		return fmt.Errorf("update verification code for %d: %w", chatID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkAccount binds the chat identified by a valid, unclaimed verification
// code to the given application account and burns the code. Returns
// ErrNotFound when the code is unknown or already claimed.
func (s *Storage) LinkAccount(ctx context.Context, code string, userID int64) (TgUser, error) {
	var u TgUser
	err := s.db.GetContext(ctx, &u,
		`UPDATE tg_users
		 SET user_id = $2, verification_code = NULL
		 WHERE verification_code = $1 AND user_id IS NULL
		 RETURNING `+tgUserColumns,
		code, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TgUser{}, ErrNotFound
	}
	if err != nil {
		return TgUser{}, fmt.Errorf("link account by code: %w", err)
	}
	return u, nil
}

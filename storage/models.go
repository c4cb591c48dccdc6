package storage

import (
	"database/sql"
	"time"
)

// Board participant roles. Owners and writers may create goals.
const (
	RoleOwner  = 1
	RoleWriter = 2
	RoleReader = 3
)

// RoleAllowsWrite reports whether the role may create or modify goals.
func RoleAllowsWrite(role int) bool {
	return role == RoleOwner || role == RoleWriter
}

// Goal statuses.
const (
	StatusToDo       = 1
	StatusInProgress = 2
	StatusDone       = 3
	StatusArchived   = 4
)

// Goal priorities.
const (
	PriorityLow      = 1
	PriorityMedium   = 2
	PriorityHigh     = 3
	PriorityCritical = 4
)

// TgUser is the persisted identity of a Telegram chat. The chat id is the
// natural key; the row is linked to an application account during
// verification, after which Verified reports true.
type TgUser struct {
	ChatID           int64          `db:"chat_id"`
	UserID           sql.NullInt64  `db:"user_id"`
	TgUserID         sql.NullInt64  `db:"tg_user_id"`
	Username         sql.NullString `db:"username"`
	VerificationCode sql.NullString `db:"verification_code"`
}

// Verified reports whether the chat is linked to an application account.
func (u TgUser) Verified() bool {
	return u.UserID.Valid
}

// Goal is a row of the goals table.
type Goal struct {
	ID          int64          `db:"id"`
	UserID      int64          `db:"user_id"`
	CategoryID  int64          `db:"category_id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Status      int            `db:"status"`
	Priority    int            `db:"priority"`
	DueDate     sql.NullTime   `db:"due_date"`
	IsDeleted   bool           `db:"is_deleted"`
	Created     time.Time      `db:"created"`
	Updated     time.Time      `db:"updated"`
}

// GoalCategory is a row of the goal_categories table.
type GoalCategory struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	BoardID   int64     `db:"board_id"`
	Title     string    `db:"title"`
	IsDeleted bool      `db:"is_deleted"`
	Created   time.Time `db:"created"`
	Updated   time.Time `db:"updated"`
}

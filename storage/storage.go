// Package storage provides sqlx-backed repositories for the chat identity
// and goal tracking tables the bot operates on.
package storage

import (
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested row does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("storage: not found")

// Storage wraps the database handle with the repository methods the bot uses.
type Storage struct {
	db *sqlx.DB
}

// New constructs a Storage over an already connected database.
func New(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

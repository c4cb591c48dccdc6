package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ListGoals returns all non-deleted goals on boards the account participates
// in, in id order.
func (s *Storage) ListGoals(ctx context.Context, userID int64) ([]Goal, error) {
	var goals []Goal
	err := s.db.SelectContext(ctx, &goals,
		`SELECT DISTINCT g.id, g.user_id, g.category_id, g.title, g.description,
		        g.status, g.priority, g.due_date, g.is_deleted, g.created, g.updated
		 FROM goals g
		 JOIN goal_categories c ON c.id = g.category_id
		 JOIN board_participants p ON p.board_id = c.board_id
		 WHERE p.user_id = $1 AND NOT g.is_deleted
		 ORDER BY g.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goals for user %d: %w", userID, err)
	}
	return goals, nil
}

// ListCategories returns all non-deleted categories on boards the account
// participates in, in id order.
func (s *Storage) ListCategories(ctx context.Context, userID int64) ([]GoalCategory, error) {
	var categories []GoalCategory
	err := s.db.SelectContext(ctx, &categories,
		`SELECT DISTINCT c.id, c.user_id, c.board_id, c.title, c.is_deleted, c.created, c.updated
		 FROM goal_categories c
		 JOIN board_participants p ON p.board_id = c.board_id
		 WHERE p.user_id = $1 AND NOT c.is_deleted
		 ORDER BY c.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories for user %d: %w", userID, err)
	}
	return categories, nil
}

// GetCategory fetches a non-deleted category by id.
func (s *Storage) GetCategory(ctx context.Context, id int64) (GoalCategory, error) {
	var c GoalCategory
	err := s.db.GetContext(ctx, &c,
		`SELECT id, user_id, board_id, title, is_deleted, created, updated
		 FROM goal_categories
		 WHERE id = $1 AND NOT is_deleted`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return GoalCategory{}, ErrNotFound
	}
	if err != nil {
		return GoalCategory{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

// ParticipantRole returns the account's role on the board.
func (s *Storage) ParticipantRole(ctx context.Context, boardID, userID int64) (int, error) {
	var role int
	err := s.db.GetContext(ctx, &role,
		`SELECT role FROM board_participants WHERE board_id = $1 AND user_id = $2`,
		boardID, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("participant role board=%d user=%d: %w", boardID, userID, err)
	}
	return role, nil
}

// CreateGoal inserts a new goal owned by the account under the category with
// default status and priority.
func (s *Storage) CreateGoal(ctx context.Context, userID, categoryID int64, title string) (Goal, error) {
	var g Goal
	err := s.db.GetContext(ctx, &g,
		`INSERT INTO goals (user_id, category_id, title, status, priority, created, updated)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 RETURNING id, user_id, category_id, title, description, status, priority,
		           due_date, is_deleted, created, updated`,
		userID, categoryID, title, StatusToDo, PriorityMedium,
	)
	if err != nil {
		return Goal{}, fmt.Errorf("create goal in category %d: %w", categoryID, err)
	}
	return g, nil
}

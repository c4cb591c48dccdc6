// Package bot contains the update dispatcher and the long-polling loop.
//
// Dispatch is a two-level state machine: the persisted verification state of
// a chat gates the in-memory dialogue state. Unverified chats only ever
// receive a greeting and a fresh verification code; verified chats get
// command routing and dialogue continuations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/yury-yury/telegram-bot/bot/state"
	"github.com/yury-yury/telegram-bot/core/logger"
	"github.com/yury-yury/telegram-bot/storage"
	"github.com/yury-yury/telegram-bot/telegram"
	"log/slog"
)

// Sender delivers outbound messages to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (telegram.Message, error)
}

// Store is the persistence surface the dispatcher consumes.
type Store interface {
	GetOrCreateTgUser(ctx context.Context, chatID, tgUserID int64, username string) (storage.TgUser, error)
	UpdateVerificationCode(ctx context.Context, chatID int64, code string) error
	ListGoals(ctx context.Context, userID int64) ([]storage.Goal, error)
	ListCategories(ctx context.Context, userID int64) ([]storage.GoalCategory, error)
	GetCategory(ctx context.Context, id int64) (storage.GoalCategory, error)
	ParticipantRole(ctx context.Context, boardID, userID int64) (int, error)
	CreateGoal(ctx context.Context, userID, categoryID int64, title string) (storage.Goal, error)
}

const dataKeyCategoryID = "category_id"

// Dispatcher routes decoded messages to command and dialogue handlers.
//
// It is not safe for concurrent dispatch of the same chat: the polling loop
// is its single caller and processes updates strictly in order.
type Dispatcher struct {
	tg       Sender
	store    Store
	sessions state.Manager
}

// NewDispatcher wires a Dispatcher. A nil sessions manager defaults to the
// in-memory implementation.
func NewDispatcher(tg Sender, store Store, sessions state.Manager) *Dispatcher {
	if sessions == nil {
		sessions = state.NewMemoryManager()
	}
	return &Dispatcher{tg: tg, store: store, sessions: sessions}
}

// HandleMessage processes one inbound message. It never returns an error and
// never panics outward: every failure ends in a log line and, where it makes
// sense, a chat reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg telegram.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "bot", "dispatch.panic",
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	var senderID int64
	var username string
	if msg.From != nil {
		senderID = msg.From.ID
		username = msg.From.Username
	}

	user, err := d.store.GetOrCreateTgUser(ctx, msg.Chat.ID, senderID, username)
	if err != nil {
		logger.Error(ctx, "bot", "identity.resolve_failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}

	if !user.Verified() {
		d.handleUnverified(ctx, user)
		return
	}
	d.handleVerified(ctx, user, msg)
}

// handleUnverified greets the chat and issues a fresh verification code.
// Each inbound message issues a brand-new code, so at most one code per chat
// is ever valid. Command text from unverified chats is ignored.
func (d *Dispatcher) handleUnverified(ctx context.Context, user storage.TgUser) {
	ctx = logger.WithHandler(ctx, "unverified")
	d.send(ctx, user.ChatID, textGreeting)

	code, err := storage.NewVerificationCode()
	if err != nil {
		logger.Error(ctx, "bot", "code.generate_failed", slog.String("err", err.Error()))
		return
	}
	if err := d.store.UpdateVerificationCode(ctx, user.ChatID, code); err != nil {
		logger.Error(ctx, "bot", "code.persist_failed", slog.String("err", err.Error()))
		return
	}
	d.send(ctx, user.ChatID, fmt.Sprintf(textVerificationCode, code))
	logger.Info(ctx, "bot", "code.issued", slog.String("status", "ok"))
}

func (d *Dispatcher) handleVerified(ctx context.Context, user storage.TgUser, msg telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/"):
		d.handleCommand(ctx, user, text)
	case d.sessions.InProgress(user.ChatID):
		d.handleDialogue(ctx, user, text)
	default:
		// Plain text outside a dialogue has no handler.
		logger.Debug(ctx, "bot", "message.ignored", slog.String("status", "skip"))
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, user storage.TgUser, text string) {
	ctx = logger.WithHandler(ctx, "command")
	logger.Debug(ctx, "bot", "command.received", slog.String("command", logger.SanitizeLimit(text, 64)))

	switch text {
	case cmdGoals:
		d.handleGoals(ctx, user)
	case cmdCreate:
		d.handleCreate(ctx, user)
	case cmdCancel:
		d.sessions.Clear(user.ChatID)
		d.send(ctx, user.ChatID, textCanceled)
	default:
		d.send(ctx, user.ChatID, textCommandNotFound)
	}
}

func (d *Dispatcher) handleGoals(ctx context.Context, user storage.TgUser) {
	goals, err := d.store.ListGoals(ctx, user.UserID.Int64)
	if err != nil {
		logger.Error(ctx, "bot", "goals.list_failed", slog.String("err", err.Error()))
		d.send(ctx, user.ChatID, textTryLater)
		return
	}
	if len(goals) == 0 {
		d.send(ctx, user.ChatID, textNoGoals)
		return
	}

	lines := make([]string, 0, len(goals))
	for _, goal := range goals {
		lines = append(lines, fmt.Sprintf("%d) %s", goal.ID, goal.Title))
	}
	d.send(ctx, user.ChatID, textGoalsHeader+strings.Join(lines, "\n"))
	logger.Debug(ctx, "bot", "goals.listed", slog.Int("count", len(goals)))
}

// handleCreate starts the goal-creation dialogue. With no categories
// available the dialogue is not started at all.
func (d *Dispatcher) handleCreate(ctx context.Context, user storage.TgUser) {
	categories, err := d.store.ListCategories(ctx, user.UserID.Int64)
	if err != nil {
		logger.Error(ctx, "bot", "categories.list_failed", slog.String("err", err.Error()))
		d.send(ctx, user.ChatID, textTryLater)
		return
	}
	if len(categories) == 0 {
		d.send(ctx, user.ChatID, textNoCategories)
		return
	}

	lines := make([]string, 0, len(categories))
	for _, category := range categories {
		lines = append(lines, fmt.Sprintf("%d) %s", category.ID, category.Title))
	}
	d.send(ctx, user.ChatID, textSelectCategory+strings.Join(lines, "\n"))
	d.sessions.Begin(user.ChatID, state.StepCategory)
}

func (d *Dispatcher) handleDialogue(ctx context.Context, user storage.TgUser, text string) {
	ctx = logger.WithHandler(ctx, "dialogue")
	step := d.sessions.GetStep(user.ChatID)
	logger.Debug(ctx, "bot", "dialogue.step", slog.String("step", string(step)))

	switch step {
	case state.StepCategory:
		d.selectCategory(ctx, user, text)
	case state.StepTitle:
		d.createGoal(ctx, user, text)
	default:
		logger.Warn(ctx, "bot", "dialogue.unknown_step", slog.String("step", string(step)))
		d.sessions.Clear(user.ChatID)
	}
}

// selectCategory handles the category id reply. On not-found and on
// permission-denied the step is kept so the user can pick another category;
// only a writable category advances the dialogue.
func (d *Dispatcher) selectCategory(ctx context.Context, user storage.TgUser, text string) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		d.send(ctx, user.ChatID, textCategoryNotFound)
		return
	}

	category, err := d.store.GetCategory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		d.send(ctx, user.ChatID, textCategoryNotFound)
		return
	}
	if err != nil {
		logger.Error(ctx, "bot", "category.get_failed", slog.String("err", err.Error()))
		d.send(ctx, user.ChatID, textTryLater)
		return
	}

	role, err := d.store.ParticipantRole(ctx, category.BoardID, user.UserID.Int64)
	if errors.Is(err, storage.ErrNotFound) {
		// Category exists on a board the account is not part of.
		d.send(ctx, user.ChatID, textCategoryNotFound)
		return
	}
	if err != nil {
		logger.Error(ctx, "bot", "participant.role_failed", slog.String("err", err.Error()))
		d.send(ctx, user.ChatID, textTryLater)
		return
	}
	if !storage.RoleAllowsWrite(role) {
		d.send(ctx, user.ChatID, textCreateForbidden)
		return
	}

	d.sessions.SetData(user.ChatID, dataKeyCategoryID, category.ID)
	d.sessions.SetStep(user.ChatID, state.StepTitle)
	d.send(ctx, user.ChatID, textSetTitle)
	logger.Debug(ctx, "bot", "category.selected",
		slog.Int64("category_id", category.ID),
		slog.Int64("board_id", category.BoardID),
		slog.Int64("role", int64(role)),
	)
}

// createGoal handles the title reply, creates the goal and finishes the
// dialogue. An empty title re-prompts without losing the step.
func (d *Dispatcher) createGoal(ctx context.Context, user storage.TgUser, text string) {
	categoryID, ok := d.sessions.DataInt64(user.ChatID, dataKeyCategoryID)
	if !ok {
		logger.Warn(ctx, "bot", "dialogue.lost_category")
		d.sessions.Clear(user.ChatID)
		d.send(ctx, user.ChatID, textTryLater)
		return
	}

	title := strings.TrimSpace(text)
	if title == "" {
		d.send(ctx, user.ChatID, textSetTitle)
		return
	}

	goal, err := d.store.CreateGoal(ctx, user.UserID.Int64, categoryID, title)
	if err != nil {
		logger.Error(ctx, "bot", "goal.create_failed", slog.String("err", err.Error()))
		d.send(ctx, user.ChatID, textTryLater)
		return
	}

	d.send(ctx, user.ChatID, textGoalCreated)
	d.sessions.Clear(user.ChatID)
	logger.Info(ctx, "bot", "goal.created",
		slog.String("status", "ok"),
		slog.Int64("goal_id", goal.ID),
		slog.Int64("category_id", categoryID),
	)
}

// send delivers a reply and downgrades failures to a log line: a lost reply
// must not take down dispatch or the polling loop.
func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) {
	if _, err := d.tg.SendMessage(ctx, chatID, text); err != nil {
		logger.Warn(ctx, "bot", "send.failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

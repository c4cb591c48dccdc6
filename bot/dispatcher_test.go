package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yury-yury/telegram-bot/bot/state"
	"github.com/yury-yury/telegram-bot/storage"
	"github.com/yury-yury/telegram-bot/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent    []sentMessage
	failAll bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) (telegram.Message, error) {
	if f.failAll {
		return telegram.Message{}, errors.New("network down")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return telegram.Message{ID: int64(len(f.sent)), Chat: telegram.Chat{ID: chatID}, Text: text}, nil
}

func (f *fakeSender) texts() []string {
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.text)
	}
	return out
}

type fakeStore struct {
	users      map[int64]storage.TgUser
	codes      map[int64]string
	goals      []storage.Goal
	categories []storage.GoalCategory
	roles      map[string]int

	created []storage.Goal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[int64]storage.TgUser),
		codes: make(map[int64]string),
		roles: make(map[string]int),
	}
}

func roleKey(boardID, userID int64) string {
	return fmt.Sprintf("%d/%d", boardID, userID)
}

func (f *fakeStore) GetOrCreateTgUser(_ context.Context, chatID, tgUserID int64, username string) (storage.TgUser, error) {
	if u, ok := f.users[chatID]; ok {
		return u, nil
	}
	u := storage.TgUser{ChatID: chatID}
	if tgUserID != 0 {
		u.TgUserID = sql.NullInt64{Int64: tgUserID, Valid: true}
	}
	if username != "" {
		u.Username = sql.NullString{String: username, Valid: true}
	}
	f.users[chatID] = u
	return u, nil
}

func (f *fakeStore) UpdateVerificationCode(_ context.Context, chatID int64, code string) error {
	u, ok := f.users[chatID]
	if !ok {
		return storage.ErrNotFound
	}
	u.VerificationCode = sql.NullString{String: code, Valid: true}
	f.users[chatID] = u
	f.codes[chatID] = code
	return nil
}

func (f *fakeStore) ListGoals(_ context.Context, userID int64) ([]storage.Goal, error) {
	var out []storage.Goal
	for _, g := range f.goals {
		if !g.IsDeleted {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCategories(_ context.Context, userID int64) ([]storage.GoalCategory, error) {
	var out []storage.GoalCategory
	for _, c := range f.categories {
		if !c.IsDeleted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCategory(_ context.Context, id int64) (storage.GoalCategory, error) {
	for _, c := range f.categories {
		if c.ID == id && !c.IsDeleted {
			return c, nil
		}
	}
	return storage.GoalCategory{}, storage.ErrNotFound
}

func (f *fakeStore) ParticipantRole(_ context.Context, boardID, userID int64) (int, error) {
	role, ok := f.roles[roleKey(boardID, userID)]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return role, nil
}

func (f *fakeStore) CreateGoal(_ context.Context, userID, categoryID int64, title string) (storage.Goal, error) {
	g := storage.Goal{
		ID:         int64(len(f.created) + 1),
		UserID:     userID,
		CategoryID: categoryID,
		Title:      title,
		Status:     storage.StatusToDo,
		Priority:   storage.PriorityMedium,
	}
	f.created = append(f.created, g)
	return g, nil
}

const (
	testChatID  = int64(500)
	testUserID  = int64(100)
	testBoardID = int64(10)
)

func verifiedUser(store *fakeStore) {
	store.users[testChatID] = storage.TgUser{
		ChatID: testChatID,
		UserID: sql.NullInt64{Int64: testUserID, Valid: true},
	}
}

func inbound(text string) telegram.Message {
	return telegram.Message{
		ID:   1,
		Text: text,
		From: &telegram.User{ID: testUserID, FirstName: "Ann", Username: "ann"},
		Chat: telegram.Chat{ID: testChatID, Type: "private"},
	}
}

func newTestDispatcher(store *fakeStore) (*Dispatcher, *fakeSender, state.Manager) {
	sender := &fakeSender{}
	sessions := state.NewMemoryManager()
	return NewDispatcher(sender, store, sessions), sender, sessions
}

func TestUnverifiedChatGetsCodeNotCommands(t *testing.T) {
	store := newFakeStore()
	d, sender, _ := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("/goals"))

	texts := sender.texts()
	if len(texts) != 2 {
		t.Fatalf("expected greeting + code, got %v", texts)
	}
	if texts[0] != textGreeting {
		t.Errorf("first reply = %q", texts[0])
	}
	code := store.codes[testChatID]
	if len(code) != 20 {
		t.Fatalf("stored code length = %d (%q)", len(code), code)
	}
	if texts[1] != fmt.Sprintf(textVerificationCode, code) {
		t.Errorf("second reply = %q, code %q", texts[1], code)
	}
	for _, text := range texts {
		if strings.Contains(text, textGoalsHeader) || text == textNoGoals {
			t.Errorf("goal listing leaked to unverified chat: %q", text)
		}
	}
}

func TestUnverifiedChatCodeRotatesPerMessage(t *testing.T) {
	store := newFakeStore()
	d, _, _ := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("hi"))
	first := store.codes[testChatID]
	d.HandleMessage(context.Background(), inbound("hi again"))
	second := store.codes[testChatID]

	if first == "" || second == "" {
		t.Fatalf("codes not stored: %q %q", first, second)
	}
	if first == second {
		t.Fatalf("code was not rotated: %q", first)
	}
}

func TestGoalsCommandListsGoals(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	store.goals = []storage.Goal{
		{ID: 1, Title: "Buy milk"},
		{ID: 2, Title: "Run 5k"},
		{ID: 3, Title: "Old", IsDeleted: true},
	}
	d, sender, _ := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("/goals"))

	texts := sender.texts()
	if len(texts) != 1 {
		t.Fatalf("expected one reply, got %v", texts)
	}
	want := textGoalsHeader + "1) Buy milk\n2) Run 5k"
	if texts[0] != want {
		t.Errorf("reply = %q, want %q", texts[0], want)
	}
}

func TestGoalsCommandEmpty(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	d, sender, _ := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("/goals"))

	if texts := sender.texts(); len(texts) != 1 || texts[0] != textNoGoals {
		t.Fatalf("replies = %v", texts)
	}
}

func TestCreateCommandInstallsDialogue(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	store.categories = []storage.GoalCategory{{ID: 2, BoardID: testBoardID, Title: "Health"}}
	d, sender, sessions := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("/create"))

	texts := sender.texts()
	if len(texts) != 1 {
		t.Fatalf("expected exactly one reply, got %v", texts)
	}
	if texts[0] != textSelectCategory+"2) Health" {
		t.Errorf("reply = %q", texts[0])
	}
	if step := sessions.GetStep(testChatID); step != state.StepCategory {
		t.Errorf("step = %q", step)
	}
	if data := sessions.Get(testChatID).Data; len(data) != 0 {
		t.Errorf("captured data not empty: %v", data)
	}
}

func TestCreateCommandWithoutCategories(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	d, sender, sessions := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("/create"))

	if texts := sender.texts(); len(texts) != 1 || texts[0] != textNoCategories {
		t.Fatalf("replies = %v", texts)
	}
	if sessions.InProgress(testChatID) {
		t.Error("dialogue must not start without categories")
	}
}

func TestGoalCreationRoundTrip(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	store.categories = []storage.GoalCategory{{ID: 2, BoardID: testBoardID, Title: "Health"}}
	store.roles[roleKey(testBoardID, testUserID)] = storage.RoleWriter
	d, sender, sessions := newTestDispatcher(store)
	ctx := context.Background()

	d.HandleMessage(ctx, inbound("/create"))
	d.HandleMessage(ctx, inbound("2"))
	d.HandleMessage(ctx, inbound("Buy milk"))

	texts := sender.texts()
	if len(texts) != 3 {
		t.Fatalf("replies = %v", texts)
	}
	if texts[1] != textSetTitle {
		t.Errorf("title prompt = %q", texts[1])
	}
	if texts[2] != textGoalCreated {
		t.Errorf("confirmation = %q", texts[2])
	}
	if len(store.created) != 1 {
		t.Fatalf("created goals = %d", len(store.created))
	}
	goal := store.created[0]
	if goal.Title != "Buy milk" || goal.CategoryID != 2 || goal.UserID != testUserID {
		t.Errorf("goal = %+v", goal)
	}
	if sessions.InProgress(testChatID) {
		t.Error("dialogue should be finished")
	}
}

func TestSelectCategoryNotFoundKeepsStep(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	store.categories = []storage.GoalCategory{{ID: 2, BoardID: testBoardID, Title: "Health"}}
	d, sender, sessions := newTestDispatcher(store)
	ctx := context.Background()

	d.HandleMessage(ctx, inbound("/create"))
	d.HandleMessage(ctx, inbound("99"))

	texts := sender.texts()
	if texts[len(texts)-1] != textCategoryNotFound {
		t.Errorf("reply = %q", texts[len(texts)-1])
	}
	if step := sessions.GetStep(testChatID); step != state.StepCategory {
		t.Errorf("step after miss = %q, user should be able to retry", step)
	}

	// Non-numeric input behaves like a miss.
	d.HandleMessage(ctx, inbound("health"))
	if step := sessions.GetStep(testChatID); step != state.StepCategory {
		t.Errorf("step after non-numeric input = %q", step)
	}
}

func TestSelectCategoryReadOnlyKeepsStep(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	store.categories = []storage.GoalCategory{{ID: 2, BoardID: testBoardID, Title: "Health"}}
	store.roles[roleKey(testBoardID, testUserID)] = storage.RoleReader
	d, sender, sessions := newTestDispatcher(store)
	ctx := context.Background()

	d.HandleMessage(ctx, inbound("/create"))
	d.HandleMessage(ctx, inbound("2"))

	texts := sender.texts()
	if texts[len(texts)-1] != textCreateForbidden {
		t.Errorf("reply = %q", texts[len(texts)-1])
	}
	if step := sessions.GetStep(testChatID); step != state.StepCategory {
		t.Errorf("step after forbidden = %q", step)
	}
	if len(store.created) != 0 {
		t.Errorf("goal created despite read-only role: %+v", store.created)
	}
}

func TestCancelClearsStateUnconditionally(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	store.categories = []storage.GoalCategory{{ID: 2, BoardID: testBoardID, Title: "Health"}}
	d, sender, sessions := newTestDispatcher(store)
	ctx := context.Background()

	// Mid-dialogue cancel.
	d.HandleMessage(ctx, inbound("/create"))
	d.HandleMessage(ctx, inbound("/cancel"))
	if sessions.InProgress(testChatID) {
		t.Error("session survived /cancel")
	}
	if texts := sender.texts(); texts[len(texts)-1] != textCanceled {
		t.Errorf("reply = %q", texts[len(texts)-1])
	}

	// Cancel with no dialogue is still confirmed.
	before := len(sender.sent)
	d.HandleMessage(ctx, inbound("/cancel"))
	if len(sender.sent) != before+1 || sender.sent[before].text != textCanceled {
		t.Errorf("cancel without session replies = %v", sender.texts()[before:])
	}
}

func TestUnknownCommand(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	d, sender, sessions := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("/frobnicate"))

	if texts := sender.texts(); len(texts) != 1 || texts[0] != textCommandNotFound {
		t.Fatalf("replies = %v", texts)
	}
	if sessions.InProgress(testChatID) {
		t.Error("unknown command touched conversation state")
	}
}

func TestStrayTextIgnored(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	d, sender, _ := newTestDispatcher(store)

	d.HandleMessage(context.Background(), inbound("just chatting"))

	if len(sender.sent) != 0 {
		t.Fatalf("expected silence, got %v", sender.texts())
	}
}

func TestEmptyTitleReprompts(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	store.categories = []storage.GoalCategory{{ID: 2, BoardID: testBoardID, Title: "Health"}}
	store.roles[roleKey(testBoardID, testUserID)] = storage.RoleOwner
	d, sender, sessions := newTestDispatcher(store)
	ctx := context.Background()

	d.HandleMessage(ctx, inbound("/create"))
	d.HandleMessage(ctx, inbound("2"))
	d.HandleMessage(ctx, inbound("   "))

	if texts := sender.texts(); texts[len(texts)-1] != textSetTitle {
		t.Errorf("reply = %q", texts[len(texts)-1])
	}
	if step := sessions.GetStep(testChatID); step != state.StepTitle {
		t.Errorf("step = %q", step)
	}
	if len(store.created) != 0 {
		t.Errorf("goal created with empty title: %+v", store.created)
	}
}

func TestSendFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	verifiedUser(store)
	sender := &fakeSender{failAll: true}
	d := NewDispatcher(sender, store, state.NewMemoryManager())

	// Must not panic or propagate.
	d.HandleMessage(context.Background(), inbound("/goals"))
}

package state

// Step identifies the pending dialogue step for a chat.
type Step string

const (
	// StepIdle indicates there is no active dialogue with the chat.
	StepIdle Step = "idle"
	// StepCategory means the next plain-text message is a category id.
	StepCategory Step = "awaiting_category"
	// StepTitle means the next plain-text message is the goal title.
	StepTitle Step = "awaiting_title"
)

// Session stores the dialogue step and data captured along the way.
type Session struct {
	Step Step
	Data map[string]interface{}
}

// Manager orchestrates chat sessions and dialogue step transitions.
//
// Implementations are safe for concurrent use, but the dispatch model is
// strictly sequential: there is a single writer, the polling loop.
type Manager interface {
	Get(chatID int64) *Session
	Begin(chatID int64, step Step)
	SetStep(chatID int64, step Step)
	GetStep(chatID int64) Step
	InProgress(chatID int64) bool

	SetData(chatID int64, key string, value interface{})
	DataInt64(chatID int64, key string) (int64, bool)

	Clear(chatID int64)
}

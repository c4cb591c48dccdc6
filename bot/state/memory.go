package state

import "sync"

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryManager constructs the in-memory Manager implementation.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
	}
}

// Get returns the session for a chat if it exists, otherwise a default idle session.
func (m *memoryManager) Get(chatID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.sessions[chatID]; ok {
		return session
	}
	return &Session{Step: StepIdle, Data: make(map[string]interface{})}
}

// Begin installs a fresh session for the chat with empty captured data,
// replacing any previous dialogue.
func (m *memoryManager) Begin(chatID int64, step Step) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[chatID] = &Session{Step: step, Data: make(map[string]interface{})}
}

// SetStep advances the dialogue step, creating a session if necessary.
func (m *memoryManager) SetStep(chatID int64, step Step) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[chatID]
	if !ok {
		session = &Session{Data: make(map[string]interface{})}
		m.sessions[chatID] = session
	}
	session.Step = step
}

// GetStep returns the current dialogue step of a chat, or StepIdle if none exists.
func (m *memoryManager) GetStep(chatID int64) Step {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.sessions[chatID]; ok {
		return session.Step
	}
	return StepIdle
}

// InProgress reports whether the chat currently has an active dialogue.
func (m *memoryManager) InProgress(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[chatID]
	return ok && session.Step != StepIdle
}

// SetData stores a captured key/value pair for the chat session.
func (m *memoryManager) SetData(chatID int64, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[chatID]
	if !ok {
		session = &Session{Data: make(map[string]interface{})}
		m.sessions[chatID] = session
	}
	session.Data[key] = value
}

// DataInt64 retrieves a captured value by key and asserts it as int64.
func (m *memoryManager) DataInt64(chatID int64, key string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[chatID]
	if !ok {
		return 0, false
	}
	v, ok := session.Data[key].(int64)
	return v, ok
}

// Clear removes the entire session for a chat. It is a no-op when absent.
func (m *memoryManager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
}

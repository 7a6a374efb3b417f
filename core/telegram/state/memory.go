package state

import (
	"sync"
	"time"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

// Option customises the in-memory manager.
type Option func(*memoryManager)

// WithClock overrides the time source used for session touch stamps.
func WithClock(now func() time.Time) Option {
	return func(m *memoryManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryManager constructs an in-memory Manager implementation.
func NewMemoryManager(opts ...Option) Manager {
	m := &memoryManager{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// session returns the user's session, creating it when missing. Callers hold mu.
func (m *memoryManager) session(userID int64) *Session {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{State: StateIdle, TempData: make(map[string]interface{})}
		m.sessions[userID] = sess
	}
	sess.Touched = m.now()
	return sess
}

// SetTemp stores a scratch key/value pair for the given user session.
func (m *memoryManager) SetTemp(userID int64, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).TempData[key] = value
}

// GetTemp retrieves a scratch value by key for the given user session.
func (m *memoryManager) GetTemp(userID int64, key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	val, ok := sess.TempData[key]
	return val, ok
}

// GetTempString retrieves a scratch value and asserts it as string.
func (m *memoryManager) GetTempString(userID int64, key string) (string, bool) {
	val, found := m.GetTemp(userID, key)
	if !found {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// GetTempInt retrieves a scratch value and asserts it as int.
func (m *memoryManager) GetTempInt(userID int64, key string) (int, bool) {
	val, found := m.GetTemp(userID, key)
	if !found {
		return 0, false
	}
	n, ok := val.(int)
	return n, ok
}

// ClearTemp removes a scratch key for the given user session.
func (m *memoryManager) ClearTemp(userID int64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		delete(sess.TempData, key)
	}
}

func (m *memoryManager) ClearScratch(userID int64, keep ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return
	}
	kept := make(map[string]interface{}, len(keep))
	for _, k := range keep {
		if v, ok := sess.TempData[k]; ok {
			kept[k] = v
		}
	}
	sess.TempData = kept
	sess.State = StateIdle
	sess.Touched = m.now()
}

// SetState sets the FSM state for the given user.
func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).State = st
}

// GetState returns the current FSM state of a user, or StateIdle if none exists.
func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

// HasState checks if a user has an active state other than idle.
func (m *memoryManager) HasState(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	return ok && sess.State != StateIdle
}

// InProgress reports whether the user currently has an active conversation.
func (m *memoryManager) InProgress(userID int64) bool {
	return m.HasState(userID)
}

func (m *memoryManager) Evict(idle time.Duration, busy func(userID int64) bool) int {
	if idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, sess := range m.sessions {
		if sess.Touched.Before(cutoff) && (busy == nil || !busy(id)) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Active reports the number of sessions with a conversation in progress.
func (m *memoryManager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sess := range m.sessions {
		if sess.State != StateIdle {
			n++
		}
	}
	return n
}

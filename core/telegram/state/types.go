package state

import "time"

// State identifies a conversation step. Conversation families prefix their
// states ("top_news:select_country") so steps never collide across commands.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and scratch data for a user.
type Session struct {
	State    State
	TempData map[string]interface{}
	Touched  time.Time
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	SetTemp(userID int64, key string, value interface{})
	ClearTemp(userID int64, key string)
	GetTemp(userID int64, key string) (interface{}, bool)
	GetTempString(userID int64, key string) (string, bool)
	GetTempInt(userID int64, key string) (int, bool)
	// ClearScratch ends the conversation: the state returns to idle and every
	// scratch key except keep is removed.
	ClearScratch(userID int64, keep ...string)

	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool

	InProgress(userID int64) bool

	// Evict drops sessions not touched within idle and reports how many were
	// removed. Sessions for which busy returns true are kept.
	Evict(idle time.Duration, busy func(userID int64) bool) int
	Active() int
}

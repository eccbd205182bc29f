package core

import "time"

// Phase is the lifecycle position of a thread. A closed thread is reset to
// PhaseUninitialized, so CLOSED is never observed as a stored value.
type Phase int

const (
	// PhaseUninitialized means no system preamble has been installed.
	PhaseUninitialized Phase = iota
	// PhaseActive means the preamble is present and turns are accepted.
	PhaseActive
)

// String returns the upper-case name of the phase.
func (p Phase) String() string {
	if p == PhaseActive {
		return "ACTIVE"
	}
	return "UNINITIALIZED"
}

// ThreadState is the checkpoint of a single conversation thread.
//
// Contract:
//   - Messages are append-only while the thread is active; only Clear removes them
//   - When Messages is non-empty its first element is the system preamble
//   - Clone performs a deep copy so callers never share the backing array
//
// A ThreadState is not safe for concurrent mutation; the thread state store
// hands out clones and serializes writers per thread id.
type ThreadState struct {
	ID          string    `json:"id"`
	Messages    []Message `json:"messages"`
	Initialized bool      `json:"initialized"`
	Saved       bool      `json:"saved"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewThreadState returns an empty, uninitialized state for id.
func NewThreadState(id string) *ThreadState {
	now := time.Now().UTC()
	return &ThreadState{ID: id, Messages: []Message{}, CreatedAt: now, UpdatedAt: now}
}

// Phase derives the lifecycle phase from the Initialized flag.
func (t *ThreadState) Phase() Phase {
	if t.Initialized {
		return PhaseActive
	}
	return PhaseUninitialized
}

// Append adds a message to the end of the history.
func (t *ThreadState) Append(m Message) {
	t.Messages = append(t.Messages, m)
	t.UpdatedAt = time.Now().UTC()
}

// LastMessage returns the most recent message, if any.
func (t *ThreadState) LastMessage() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// LatestUserText returns the content of the most recent user message.
func (t *ThreadState) LatestUserText() string {
	return LatestUserText(t.Messages)
}

// Clear empties the history and resets both lifecycle flags.
func (t *ThreadState) Clear() {
	t.Messages = []Message{}
	t.Initialized = false
	t.Saved = false
	t.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy safe for independent mutation.
func (t *ThreadState) Clone() *ThreadState {
	c := *t
	c.Messages = CloneMessages(t.Messages)
	return &c
}

// LatestUserText scans msgs backwards for the newest user message.
func LatestUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// UserContext identifies the caller on whose behalf a turn runs. It is
// supplied by the surrounding (authenticated) transport.
type UserContext struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

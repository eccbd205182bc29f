package testutil

import (
	"github.com/hupe1980/trekka/core"
)

// ThreadBuilder helps construct thread states with fluent chaining for tests.
// Example:
//
//	st := NewThreadBuilder("t-1").System("preamble").User("hi").Assistant("hello").Build()
type ThreadBuilder struct {
	id          string
	messages    []core.Message
	initialized bool
	saved       bool
}

// NewThreadBuilder creates a new builder for a thread with the given id.
func NewThreadBuilder(id string) *ThreadBuilder {
	return &ThreadBuilder{id: id}
}

// System appends a system message and marks the thread initialized (chainable).
func (b *ThreadBuilder) System(text string) *ThreadBuilder {
	b.messages = append(b.messages, core.SystemMessage(text))
	b.initialized = true
	return b
}

// User appends a user message (chainable).
func (b *ThreadBuilder) User(text string) *ThreadBuilder {
	b.messages = append(b.messages, core.UserMessage(text))
	return b
}

// Assistant appends an assistant message (chainable).
func (b *ThreadBuilder) Assistant(text string) *ThreadBuilder {
	b.messages = append(b.messages, core.AssistantMessage(text))
	return b
}

// Saved sets the saved flag (chainable).
func (b *ThreadBuilder) Saved() *ThreadBuilder {
	b.saved = true
	return b
}

// Build returns a *core.ThreadState with the configured history.
func (b *ThreadBuilder) Build() *core.ThreadState {
	s := core.NewThreadState(b.id)
	s.Messages = append(s.Messages, b.messages...)
	s.Initialized = b.initialized
	s.Saved = b.saved
	return s
}

// History returns only the messages.
func (b *ThreadBuilder) History() []core.Message {
	return core.CloneMessages(b.messages)
}

package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadState_AppendAndClone(t *testing.T) {
	s := NewThreadState("t1")
	assert.Equal(t, PhaseUninitialized, s.Phase())

	s.Append(SystemMessage("preamble"))
	s.Append(UserMessage("hi"))
	s.Initialized = true

	clone := s.Clone()
	require.NotSame(t, s, clone)
	clone.Append(AssistantMessage("hello"))

	assert.Len(t, s.Messages, 2, "original must not see the clone's append")
	assert.Len(t, clone.Messages, 3)
	assert.Equal(t, PhaseActive, clone.Phase())
}

func TestThreadState_LatestUserTextAndLastMessage(t *testing.T) {
	s := NewThreadState("t2")
	_, ok := s.LastMessage()
	assert.False(t, ok)
	assert.Empty(t, s.LatestUserText())

	s.Append(SystemMessage("sys"))
	s.Append(UserMessage("first"))
	s.Append(AssistantMessage("reply"))
	s.Append(UserMessage("second"))

	last, ok := s.LastMessage()
	require.True(t, ok)
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, "second", s.LatestUserText())
}

func TestThreadState_Clear(t *testing.T) {
	s := NewThreadState("t3")
	s.Append(SystemMessage("sys"))
	s.Initialized = true
	s.Saved = true

	s.Clear()

	assert.Empty(t, s.Messages)
	assert.False(t, s.Initialized)
	assert.False(t, s.Saved)
	assert.Equal(t, "t3", s.ID)
}

func TestIntent_StringAndParse(t *testing.T) {
	for _, in := range Intents() {
		assert.True(t, in.Valid())
		parsed, ok := ParseIntent(in.String())
		require.True(t, ok, in.String())
		assert.Equal(t, in, parsed)
	}
	assert.Len(t, Intents(), 7)
	assert.Equal(t, "unknown", Intent(99).String())

	_, ok := ParseIntent("nope")
	assert.False(t, ok)
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := error(NewValidationError("message", "is required"))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrBusy))
	assert.Contains(t, err.Error(), "message")
}

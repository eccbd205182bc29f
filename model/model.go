package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/trekka/core"
)

// Request captures the normalized model input: an ordered role-tagged
// message list. System messages are passed through to the provider's system
// channel.
type Request struct {
	Messages []core.Message `json:"messages"`
	Stream   bool           `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry a text delta; the final chunk carries the full text.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Error wraps a provider failure with the provider name.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("%s model error: %v", e.Provider, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// ErrEmptyResponse is returned by Complete when the provider produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Complete runs a non-streaming generation over msgs and returns the trimmed
// reply text. Provider failures are wrapped in *Error.
func Complete(ctx context.Context, m Model, msgs []core.Message) (string, error) {
	respCh, errCh := m.Generate(ctx, Request{Messages: core.CloneMessages(msgs)})

	var (
		final    string
		hasFinal bool
		partials strings.Builder
	)
	for r := range respCh {
		if r.Partial {
			partials.WriteString(r.Text)
			continue
		}
		final = r.Text
		hasFinal = true
	}
	if err := <-errCh; err != nil {
		return "", &Error{Provider: m.Info().Provider, Err: err}
	}
	if !hasFinal {
		final = partials.String()
	}
	final = strings.TrimSpace(final)
	if final == "" {
		return "", &Error{Provider: m.Info().Provider, Err: ErrEmptyResponse}
	}
	return final, nil
}

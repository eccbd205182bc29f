package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/trekka/core"
)

type rule struct {
	contains string
	response string
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Replies are resolved against the text of the last message: exact matches
// first, then substring rules in registration order, then the optional
// reply func, then a generic echo.
type MockModel struct {
	info Info

	mu        sync.RWMutex
	responses map[string]string
	rules     []rule
	replyFn   func(req Request) (string, error)
	err       error

	calls atomic.Int64
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddRule answers any prompt containing substr with response.
func (m *MockModel) AddRule(substr, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{contains: substr, response: response})
}

// SetReplyFunc installs a fallback used when no response or rule matches.
func (m *MockModel) SetReplyFunc(fn func(req Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyFn = fn
}

// SetError makes every subsequent Generate call fail with err. Pass nil to clear.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Generate has been invoked.
func (m *MockModel) Calls() int { return int(m.calls.Load()) }

func (m *MockModel) resolve(req Request) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	var input string
	if n := len(req.Messages); n > 0 {
		input = req.Messages[n-1].Content
	}
	if r, ok := m.responses[input]; ok {
		return r, nil
	}
	for _, r := range m.rules {
		if strings.Contains(input, r.contains) {
			return r.response, nil
		}
	}
	if m.replyFn != nil {
		return m.replyFn(req)
	}
	return fmt.Sprintf("Mock response to: %s", input), nil
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	m.calls.Add(1)
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		full, err := m.resolve(req)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, FinishReason: "stop"}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

var _ Model = (*MockModel)(nil)

// LastUserText is a small helper for reply funcs.
func LastUserText(req Request) string { return core.LatestUserText(req.Messages) }

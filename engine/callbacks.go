package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/logging"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks observe the engine without changing its behavior: they run after
// the thread state has been persisted, and a failing callback is logged but
// never turns a completed turn or close into an error.
type CallbackType string

const (
	// CallbackAfterTurn runs once a turn's reply has been persisted.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackAfterClose runs once a close has finished, whether it
	// persisted a record, skipped generation, or failed.
	CallbackAfterClose CallbackType = "after_close"
)

// CallbackContext carries what a callback may inspect.
type CallbackContext struct {
	CallbackType CallbackType
	ThreadID     string
	User         core.UserContext

	// Set for CallbackAfterTurn.
	Intent core.Intent
	Reply  string

	// Set for CallbackAfterClose.
	Close *CloseResult
}

// Callback is an engine lifecycle hook.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(CallbackAfterTurn, func(ctx context.Context, c *CallbackContext) error {
//	    audit.Record(c.ThreadID, c.Intent)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is a registry of callbacks keyed by type. Registration and
// execution are safe for concurrent use; callbacks of one type run in
// registration order.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback registered for callbackType. Unlike a
// guard, an error does not stop the remaining callbacks; all errors are
// reported to logger.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
	logger logging.Logger,
) {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			logger.Warn("callback failed", "type", string(callbackType), "error", err)
		}
	}
}

// LoggingCallback logs each lifecycle event at info level.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	args := []any{"type", string(c.callbackType)}
	switch c.callbackType {
	case CallbackAfterTurn:
		args = append(args, "intent", callbackCtx.Intent.String())
	case CallbackAfterClose:
		if callbackCtx.Close != nil {
			args = append(args, "ok", callbackCtx.Close.OK, "saved", callbackCtx.Close.Saved)
		}
	}
	logging.WithThread(c.logger, callbackCtx.ThreadID).Info("engine lifecycle event", args...)
	return nil
}

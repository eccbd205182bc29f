package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/logging"
)

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLoggingCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})
	ctx := context.Background()

	require.NoError(t, NewLoggingCallback(CallbackAfterTurn, logger).Execute(ctx, &CallbackContext{
		ThreadID: "t1",
		Intent:   core.IntentWeather,
	}))
	require.NoError(t, NewLoggingCallback(CallbackAfterClose, logger).Execute(ctx, &CallbackContext{
		ThreadID: "t2",
		Close:    &CloseResult{OK: true, Saved: true},
	}))

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "engine lifecycle event", lines[0]["msg"])
	assert.Equal(t, "t1", lines[0]["thread_id"])
	assert.Equal(t, "weather", lines[0]["intent"])
	assert.Equal(t, "t2", lines[1]["thread_id"])
	assert.Equal(t, true, lines[1]["saved"])

	assert.NoError(t, NewLoggingCallback(CallbackAfterTurn, nil).Execute(ctx, &CallbackContext{}))
}

func TestCallbackManager_ErrorsDoNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})

	cm := NewCallbackManager()
	ran := 0
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterTurn, func(context.Context, *CallbackContext) error {
		ran++
		return errors.New("first failed")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterTurn, func(context.Context, *CallbackContext) error {
		ran++
		return nil
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterClose, func(context.Context, *CallbackContext) error {
		t.Error("close callback must not run for a turn")
		return nil
	}))

	cbctx := &CallbackContext{ThreadID: "t1"}
	cm.ExecuteCallbacks(context.Background(), CallbackAfterTurn, cbctx, logging.WithThread(logger, "t1"))

	assert.Equal(t, 2, ran)
	assert.Equal(t, CallbackAfterTurn, cbctx.CallbackType)
	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "callback failed", lines[0]["msg"])
	assert.Equal(t, "t1", lines[0]["thread_id"])
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trekka"
	"github.com/hupe1980/trekka/engine"
	"github.com/hupe1980/trekka/metrics"
	"github.com/hupe1980/trekka/model"
	"github.com/hupe1980/trekka/threadstate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	server *Server
	states *threadstate.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	llm := model.NewMockModel("mock", "mock")
	llm.SetReplyFunc(func(req model.Request) (string, error) {
		switch req.Messages[0].Content {
		case engine.SummaryPrompt:
			return "Asked about trekking permits.", nil
		case engine.TitlePrompt:
			return "Trekking Permits", nil
		}
		return "Namaste!", nil
	})

	states := threadstate.New(func(o *threadstate.Options) { o.LockTimeout = 20 * time.Millisecond })
	rec := metrics.NewPrometheus()
	tk, err := trekka.New(llm, func(o *trekka.Options) {
		o.States = states
		o.Metrics = rec
	})
	require.NoError(t, err)

	srv := NewServer(tk, func(o *Options) {
		o.MetricsHandler = promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})
	})
	return &harness{server: srv, states: states}
}

func (h *harness) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
		req.Header.Set(HeaderUserName, "Asha")
	}
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthzNeedsNoUser(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/chat", "", ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatAndNewChatFlow(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/chat", "u1", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	chat := decode[ChatResponse](t, w)
	assert.NotEmpty(t, chat.ThreadID)
	assert.Equal(t, "Namaste!", chat.Response)

	w = h.do(t, http.MethodPost, "/chat", "u1", ChatRequest{Message: "save Lumbini", ThreadID: chat.ThreadID})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPost, "/new-chat", "u1", NewChatRequest{ThreadID: chat.ThreadID})
	require.Equal(t, http.StatusOK, w.Code)
	closed := decode[engine.CloseResult](t, w)
	assert.True(t, closed.OK)
	assert.True(t, closed.Saved)
	assert.Equal(t, "Trekking Permits", closed.Title)

	w = h.do(t, http.MethodGet, "/conversations", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs map[string][]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &convs))
	require.Len(t, convs["conversations"], 1)
	assert.Equal(t, map[string]any{
		"id":      chat.ThreadID,
		"title":   "Trekking Permits",
		"summary": "Asked about trekking permits.",
	}, convs["conversations"][0])

	w = h.do(t, http.MethodGet, "/favorites", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Lumbini")

	w = h.do(t, http.MethodGet, "/conversations", "someone-else", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"conversations":[]}`, w.Body.String())

	w = h.do(t, http.MethodPost, "/delete-conversation", "someone-else", DeleteConversationRequest{ID: chat.ThreadID})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	w = h.do(t, http.MethodGet, "/conversations", "u1", nil)
	assert.Contains(t, w.Body.String(), chat.ThreadID, "another user cannot delete the record")

	w = h.do(t, http.MethodPost, "/delete-conversation", "u1", DeleteConversationRequest{ID: chat.ThreadID})
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/conversations", "u1", nil)
	assert.JSONEq(t, `{"conversations":[]}`, w.Body.String())
}

func TestDeleteConversationAlwaysAcknowledges(t *testing.T) {
	h := newHarness(t)

	for _, id := range []string{"missing-thread", ""} {
		w := h.do(t, http.MethodPost, "/delete-conversation", "u1", DeleteConversationRequest{ID: id})
		assert.Equal(t, http.StatusOK, w.Code, id)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String(), id)
	}
}

func TestNewChatWithoutBody(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/new-chat", nil)
	req.Header.Set(HeaderUserID, "u1")
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[engine.CloseResult](t, w).OK)
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/chat", "u1", ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message", decode[ErrorResponse](t, w).Field)

	w = h.do(t, http.MethodPost, "/chat", "u1", ChatRequest{Message: "hi", ThreadID: "not valid!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{"))
	req.Header.Set(HeaderUserID, "u1")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/delete-conversation", strings.NewReader("{"))
	req.Header.Set(HeaderUserID, "u1")
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBusyThreadReturns503(t *testing.T) {
	h := newHarness(t)
	release, err := h.states.Acquire(context.Background(), "t1")
	require.NoError(t, err)
	defer release()

	w := h.do(t, http.MethodPost, "/chat", "u1", ChatRequest{Message: "hi", ThreadID: "t1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/chat", "u1", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trekka_engine_turns_total")
}

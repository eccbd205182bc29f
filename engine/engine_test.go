package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/handler"
	"github.com/hupe1980/trekka/internal/testutil"
	"github.com/hupe1980/trekka/model"
	"github.com/hupe1980/trekka/store"
	"github.com/hupe1980/trekka/threadstate"
)

type funcHandler struct {
	in core.Intent
	fn func(ctx context.Context, req *handler.Request) core.Message
}

func (h funcHandler) Intent() core.Intent { return h.in }

func (h funcHandler) Handle(ctx context.Context, req *handler.Request) core.Message {
	return h.fn(ctx, req)
}

func registryWith(t *testing.T, svc handler.Services, overrides ...handler.Handler) *handler.Registry {
	t.Helper()
	hs := []handler.Handler{
		handler.NewChat(svc.Model),
		handler.NewKnowledgeLookup(svc.Model, svc.Retriever),
		handler.NewEncyclopedia(svc.Encyclopedia),
		handler.NewWebSearch(svc.Searcher),
		handler.NewWeather(svc.Model, svc.Weather),
		handler.NewNews(svc.Model, svc.Searcher),
		handler.NewSavePreference(svc.Conversations),
	}
	for _, o := range overrides {
		for i, h := range hs {
			if h.Intent() == o.Intent() {
				hs[i] = o
			}
		}
	}
	r, err := handler.NewRegistry(hs...)
	require.NoError(t, err)
	return r
}

// scriptedModel answers by the instruction in the first message so turns,
// summaries and titles can be told apart.
func scriptedModel() *model.MockModel {
	llm := model.NewMockModel("mock", "mock")
	llm.SetReplyFunc(func(req model.Request) (string, error) {
		switch req.Messages[0].Content {
		case SummaryPrompt:
			return "The user asked about Pokhara weather and lakeside stays.", nil
		case TitlePrompt:
			return `"Pokhara Weather and Lakeside Trip Plans"`, nil
		default:
			return "chat reply", nil
		}
	})
	return llm
}

type fixture struct {
	engine *Engine
	states *threadstate.Store
	llm    *model.MockModel
	convs  *store.MemoryStore
}

func newFixture(t *testing.T, svc handler.Services, overrides ...handler.Handler) *fixture {
	t.Helper()
	llm, ok := svc.Model.(*model.MockModel)
	if !ok || llm == nil {
		llm = scriptedModel()
		svc.Model = llm
	}
	convs := store.NewMemoryStore()
	if svc.Conversations == nil {
		svc.Conversations = convs
	}
	states := threadstate.New(func(o *threadstate.Options) { o.LockTimeout = 2 * time.Second })
	eng, err := New(states, registryWith(t, svc, overrides...), llm, func(o *Options) {
		o.Conversations = svc.Conversations
	})
	require.NoError(t, err)
	return &fixture{engine: eng, states: states, llm: llm, convs: convs}
}

var user = core.UserContext{UserID: "u1", DisplayName: "Asha"}

func TestNew_RequiresCollaborators(t *testing.T) {
	llm := scriptedModel()
	reg := registryWith(t, handler.Services{Model: llm})

	_, err := New(nil, reg, llm)
	assert.Error(t, err)
	_, err = New(threadstate.New(), nil, llm)
	assert.Error(t, err)
	_, err = New(threadstate.New(), reg, nil)
	assert.Error(t, err)
	_, err = New(threadstate.New(), reg, llm, func(o *Options) { o.Config.SystemPrompt = "{{.Broken" })
	assert.Error(t, err)
}

func TestHandleTurn_FirstTurnPrependsOneSystemMessage(t *testing.T) {
	f := newFixture(t, handler.Services{})
	ctx := context.Background()

	res, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "hello", User: user})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.ThreadID)
	assert.Equal(t, "chat reply", res.Reply)
	assert.Equal(t, core.IntentChat, res.Intent)

	_, err = f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "and again", User: user})
	require.NoError(t, err)

	st, ok := f.states.Get("t1")
	require.True(t, ok)
	require.Len(t, st.Messages, 5)

	systems := 0
	for _, m := range st.Messages {
		if m.Role == core.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Equal(t, core.RoleSystem, st.Messages[0].Role)
	assert.Contains(t, st.Messages[0].Content, "The user's name is Asha.")
	assert.Equal(t, []core.Role{core.RoleUser, core.RoleAssistant, core.RoleUser, core.RoleAssistant},
		[]core.Role{st.Messages[1].Role, st.Messages[2].Role, st.Messages[3].Role, st.Messages[4].Role})
	assert.True(t, st.Initialized)
	assert.False(t, st.Saved)
}

func TestHandleTurn_GeneratesThreadID(t *testing.T) {
	f := newFixture(t, handler.Services{})

	res, err := f.engine.HandleTurn(context.Background(), TurnRequest{Text: "hi"})
	require.NoError(t, err)
	_, err = uuid.Parse(res.ThreadID)
	assert.NoError(t, err)
}

func TestHandleTurn_ValidationLeavesNoState(t *testing.T) {
	f := newFixture(t, handler.Services{})
	ctx := context.Background()

	_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "   "})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "message", verr.Field)

	_, err = f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "bad id!", Text: "hi"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	assert.Equal(t, 0, f.states.Len())
	assert.Equal(t, 0, f.llm.Calls())
}

func TestHandleTurn_BusyLeavesStateUntouched(t *testing.T) {
	llm := scriptedModel()
	states := threadstate.New(func(o *threadstate.Options) { o.LockTimeout = 30 * time.Millisecond })
	eng, err := New(states, registryWith(t, handler.Services{Model: llm}), llm)
	require.NoError(t, err)

	release, err := states.Acquire(context.Background(), "t1")
	require.NoError(t, err)
	defer release()

	_, err = eng.HandleTurn(context.Background(), TurnRequest{ThreadID: "t1", Text: "hi"})
	assert.ErrorIs(t, err, core.ErrBusy)

	_, ok := states.Get("t1")
	assert.False(t, ok)
}

func TestHandleTurn_HandlerFailuresBecomeApology(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, *handler.Request) core.Message
	}{
		{"panic", func(context.Context, *handler.Request) core.Message { panic("boom") }},
		{"empty reply", func(context.Context, *handler.Request) core.Message { return core.AssistantMessage("  ") }},
		{"wrong role", func(context.Context, *handler.Request) core.Message { return core.UserMessage("oops") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, handler.Services{}, funcHandler{in: core.IntentChat, fn: tt.fn})

			res, err := f.engine.HandleTurn(context.Background(), TurnRequest{ThreadID: "t1", Text: "hi"})
			require.NoError(t, err)
			assert.Equal(t, handler.ApologyText, res.Reply)

			st, _ := f.states.Get("t1")
			require.Len(t, st.Messages, 3)
			assert.Equal(t, core.AssistantMessage(handler.ApologyText), st.Messages[2])
		})
	}
}

func TestHandleTurn_WeatherVerbatim(t *testing.T) {
	forecast := "Weather forecast for Pokhara, NP:\n1) Date: 2026-10-18, Avg Temp: 22.2°C, Condition: light rain\n2) Date: 2026-10-19, Avg Temp: 18.0°C, Condition: few clouds"
	llm := model.NewMockModel("mock", "mock")
	llm.AddRule("Extract the city name", "Pokhara")
	weatherSvc := testutil.WeatherFunc(func(_ context.Context, city string, _ int) (string, error) {
		if city != "Pokhara" {
			return "", fmt.Errorf("unexpected city %q", city)
		}
		return forecast, nil
	})
	f := newFixture(t, handler.Services{Model: llm, Weather: weatherSvc})

	res, err := f.engine.HandleTurn(context.Background(), TurnRequest{Text: "weather in Pokhara"})
	require.NoError(t, err)
	assert.Equal(t, core.IntentWeather, res.Intent)
	assert.True(t, strings.HasPrefix(res.Reply, "Weather forecast for Pokhara"))
	assert.Equal(t, forecast, res.Reply)
}

func TestHandleTurn_SaveDestination(t *testing.T) {
	convs := &testutil.MockConversationStore{}
	convs.On("CreateFavoriteDestination", mock.Anything, "u1", "Kathmandu").
		Return(&core.FavoriteDestination{ID: 1, UserID: "u1", Name: "Kathmandu"}, nil).Once()
	f := newFixture(t, handler.Services{Conversations: convs})

	res, err := f.engine.HandleTurn(context.Background(), TurnRequest{ThreadID: "t1", Text: "save Kathmandu", User: user})
	require.NoError(t, err)
	assert.Equal(t, handler.SavedDestinationText, res.Reply)
	convs.AssertNumberOfCalls(t, "CreateFavoriteDestination", 1)
	convs.AssertExpectations(t)
}

func TestHandleTurn_SameThreadIsSerialized(t *testing.T) {
	f := newFixture(t, handler.Services{})
	ctx := context.Background()

	const turns = 12
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "shared", Text: fmt.Sprintf("message %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st, ok := f.states.Get("shared")
	require.True(t, ok)
	require.Len(t, st.Messages, 1+2*turns, "no turn may be lost")
	for i := 1; i < len(st.Messages); i += 2 {
		assert.Equal(t, core.RoleUser, st.Messages[i].Role)
		assert.Equal(t, core.RoleAssistant, st.Messages[i+1].Role)
	}
}

func TestHandleTurn_DifferentThreadsDoNotBlock(t *testing.T) {
	unblock := make(chan struct{})
	entered := make(chan struct{})
	slow := funcHandler{in: core.IntentWebSearch, fn: func(ctx context.Context, _ *handler.Request) core.Message {
		close(entered)
		select {
		case <-unblock:
		case <-ctx.Done():
		}
		return core.AssistantMessage("slow result")
	}}
	f := newFixture(t, handler.Services{}, slow)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "a", Text: "search something slow"})
		assert.NoError(t, err)
	}()
	<-entered

	res, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "b", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "chat reply", res.Reply)

	close(unblock)
	<-done
}

func TestHandleTurn_Callbacks(t *testing.T) {
	f := newFixture(t, handler.Services{})
	var got []core.Intent
	var mu sync.Mutex
	f.engine.Callbacks().RegisterCallback(NewFunctionCallback(CallbackAfterTurn, func(_ context.Context, c *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c.Intent)
		return errors.New("ignored")
	}))

	res, err := f.engine.HandleTurn(context.Background(), TurnRequest{ThreadID: "t1", Text: "hi"})
	require.NoError(t, err, "callback errors do not fail the turn")
	assert.Equal(t, "chat reply", res.Reply)
	assert.Equal(t, []core.Intent{core.IntentChat}, got)
}

func TestClose_SavesSummaryAndResets(t *testing.T) {
	f := newFixture(t, handler.Services{})
	ctx := context.Background()

	_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "hello", User: user})
	require.NoError(t, err)

	var closed *CloseResult
	f.engine.Callbacks().RegisterCallback(NewFunctionCallback(CallbackAfterClose, func(_ context.Context, c *CallbackContext) error {
		closed = c.Close
		return nil
	}))

	res, err := f.engine.Close(ctx, CloseRequest{ThreadID: "t1", User: user})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.Saved)
	assert.Equal(t, "Pokhara Weather and Lakeside", res.Title)
	assert.Equal(t, "The user asked about Pokhara weather and lakeside stays.", res.Summary)
	assert.Same(t, res, closed)

	recs, err := f.convs.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "t1", recs[0].ThreadID)
	assert.Equal(t, res.Title, recs[0].Title)

	st, ok := f.states.Get("t1")
	require.True(t, ok)
	assert.Empty(t, st.Messages)
	assert.False(t, st.Initialized)

	// the next turn starts a fresh conversation with a new preamble
	_, err = f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "again", User: user})
	require.NoError(t, err)
	st, _ = f.states.Get("t1")
	assert.Len(t, st.Messages, 3)
	assert.Equal(t, core.RoleSystem, st.Messages[0].Role)
}

func TestClose_IsIdempotent(t *testing.T) {
	f := newFixture(t, handler.Services{})
	ctx := context.Background()

	_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "hello", User: user})
	require.NoError(t, err)

	first, err := f.engine.Close(ctx, CloseRequest{ThreadID: "t1", User: user})
	require.NoError(t, err)
	require.True(t, first.Saved)
	calls := f.llm.Calls()

	second, err := f.engine.Close(ctx, CloseRequest{ThreadID: "t1", User: user})
	require.NoError(t, err)
	assert.True(t, second.OK)
	assert.False(t, second.Saved)
	assert.Equal(t, calls, f.llm.Calls(), "second close must not generate")

	recs, _ := f.convs.ListConversations(ctx, "u1")
	assert.Len(t, recs, 1)
}

func TestClose_SystemOnlyThreadSkipsGeneration(t *testing.T) {
	f := newFixture(t, handler.Services{})
	f.states.Put(testutil.NewThreadBuilder("t1").System("preamble").Build())

	res, err := f.engine.Close(context.Background(), CloseRequest{ThreadID: "t1", User: user})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.Saved)
	assert.Equal(t, 0, f.llm.Calls())

	st, ok := f.states.Get("t1")
	require.True(t, ok)
	assert.Empty(t, st.Messages)
	assert.False(t, st.Initialized)
}

func TestClose_UnknownAndEmptyThread(t *testing.T) {
	f := newFixture(t, handler.Services{})

	res, err := f.engine.Close(context.Background(), CloseRequest{})
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = f.engine.Close(context.Background(), CloseRequest{ThreadID: "never-used"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 0, f.llm.Calls())

	_, err = f.engine.Close(context.Background(), CloseRequest{ThreadID: "bad id!"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestClose_GenerationFailureStillResets(t *testing.T) {
	f := newFixture(t, handler.Services{})
	ctx := context.Background()
	_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "hello", User: user})
	require.NoError(t, err)

	f.llm.SetError(errors.New("model offline"))
	res, err := f.engine.Close(ctx, CloseRequest{ThreadID: "t1", User: user})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "summary generation")

	st, _ := f.states.Get("t1")
	assert.Empty(t, st.Messages)
	recs, _ := f.convs.ListConversations(ctx, "u1")
	assert.Empty(t, recs)
}

func TestClose_WaitsForInFlightTurn(t *testing.T) {
	unblock := make(chan struct{})
	entered := make(chan struct{})
	slow := funcHandler{in: core.IntentWebSearch, fn: func(ctx context.Context, _ *handler.Request) core.Message {
		close(entered)
		select {
		case <-unblock:
		case <-ctx.Done():
		}
		return core.AssistantMessage("teahouses in Ghandruk")
	}}

	var (
		mu         sync.Mutex
		transcript string
	)
	llm := model.NewMockModel("mock", "mock")
	llm.SetReplyFunc(func(req model.Request) (string, error) {
		switch req.Messages[0].Content {
		case SummaryPrompt:
			mu.Lock()
			transcript = req.Messages[1].Content
			mu.Unlock()
			return "Looked for teahouses.", nil
		case TitlePrompt:
			return "Ghandruk Teahouses", nil
		}
		return "chat reply", nil
	})
	f := newFixture(t, handler.Services{Model: llm}, slow)
	ctx := context.Background()

	turnDone := make(chan struct{})
	go func() {
		defer close(turnDone)
		_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "search teahouses", User: user})
		assert.NoError(t, err)
	}()
	<-entered

	closed := make(chan *CloseResult, 1)
	go func() {
		res, err := f.engine.Close(ctx, CloseRequest{ThreadID: "t1", User: user})
		assert.NoError(t, err)
		closed <- res
	}()

	select {
	case <-closed:
		t.Fatal("close finished while the turn still held the thread")
	case <-time.After(50 * time.Millisecond):
	}

	close(unblock)
	<-turnDone
	res := <-closed
	require.True(t, res.OK)
	require.True(t, res.Saved)
	assert.Equal(t, "Ghandruk Teahouses", res.Title)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, transcript, "User: search teahouses")
	assert.Contains(t, transcript, "teahouses in Ghandruk", "summary must include the finished turn")

	st, _ := f.states.Get("t1")
	assert.Empty(t, st.Messages)
}

// stallingModel never answers; it reports the context error once the
// caller gives up.
type stallingModel struct{}

func (stallingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return respCh, errCh
}

func (stallingModel) Info() model.Info { return model.Info{Name: "stall", Provider: "mock"} }

func TestClose_GenerationTimeoutStillResets(t *testing.T) {
	f := newFixture(t, handler.Services{})
	f.states.Put(testutil.NewThreadBuilder("t1").System("preamble").User("hello").Assistant("Namaste").Build())

	eng, err := New(f.states, registryWith(t, handler.Services{Model: f.llm}), stallingModel{}, func(o *Options) {
		o.Conversations = f.convs
		o.Config.ServiceTimeout = 20 * time.Millisecond
	})
	require.NoError(t, err)

	start := time.Now()
	res, err := eng.Close(context.Background(), CloseRequest{ThreadID: "t1", User: user})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.OK)
	assert.False(t, res.Saved)
	assert.Contains(t, res.Error, "summary generation")
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())

	st, ok := f.states.Get("t1")
	require.True(t, ok)
	assert.Empty(t, st.Messages)
	assert.False(t, st.Initialized)
	recs, _ := f.convs.ListConversations(context.Background(), "u1")
	assert.Empty(t, recs)
}

func TestClose_PersistenceFailureStillResets(t *testing.T) {
	convs := &testutil.MockConversationStore{}
	convs.On("UpsertConversation", mock.Anything, mock.MatchedBy(func(rec *core.ConversationRecord) bool {
		return rec.ThreadID == "t1" && rec.UserID == "u1"
	})).Return(errors.New("disk full")).Once()
	f := newFixture(t, handler.Services{Conversations: convs})
	ctx := context.Background()

	_, err := f.engine.HandleTurn(ctx, TurnRequest{ThreadID: "t1", Text: "hello", User: user})
	require.NoError(t, err)

	res, err := f.engine.Close(ctx, CloseRequest{ThreadID: "t1", User: user})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "persistence")
	convs.AssertExpectations(t)

	st, _ := f.states.Get("t1")
	assert.Empty(t, st.Messages)
}

func TestTranscript(t *testing.T) {
	out := Transcript([]core.Message{
		core.SystemMessage("sys"),
		core.UserMessage("hi"),
		core.AssistantMessage("hello"),
	})
	assert.Equal(t, "System: sys\nUser: hi\nAssistant: hello", out)
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "Pokhara Weather and Lakeside", sanitizeTitle(`"Pokhara Weather and Lakeside Trip"`, 4))
	assert.Equal(t, "Trek Planning", sanitizeTitle("**Trek Planning**\nextra line", 4))
	assert.Equal(t, "Kathmandu Valley", sanitizeTitle("[Kathmandu Valley](https://x.example)", 4))
	assert.Equal(t, "", sanitizeTitle("  ", 4))
}

func TestValidateThreadID(t *testing.T) {
	assert.NoError(t, ValidateThreadID("t1"))
	assert.NoError(t, ValidateThreadID(uuid.NewString()))
	assert.Error(t, ValidateThreadID(""))
	assert.Error(t, ValidateThreadID("-leading"))
	assert.Error(t, ValidateThreadID(strings.Repeat("a", 129)))
}

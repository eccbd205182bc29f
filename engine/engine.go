package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/handler"
	"github.com/hupe1980/trekka/intent"
	"github.com/hupe1980/trekka/internal/util"
	"github.com/hupe1980/trekka/logging"
	"github.com/hupe1980/trekka/metrics"
	"github.com/hupe1980/trekka/model"
	"github.com/hupe1980/trekka/store"
	"github.com/hupe1980/trekka/threadstate"
)

// DefaultSystemPrompt is the preamble placed at the head of every new
// thread. It is a text/template rendered with the caller's core.UserContext.
const DefaultSystemPrompt = "You are Trekka, a friendly and professional AI travel assistant specialized in Nepal. " +
	"You maintain a natural conversational flow and remember previous messages. " +
	"Do not reintroduce yourself unless the user explicitly asks who you are. " +
	"Respond warmly, clearly, and professionally. " +
	"If the user refers to earlier parts of the conversation, respond consistently. " +
	"Do NOT use Markdown formatting such as **bold**, *italic*, or any special symbols. " +
	"When listing items or instructions, always use numbered points like: " +
	"1) First point\n2) Second point\n3) Third point, and so on. " +
	"Always respond in plain, readable text suitable for chat display." +
	"{{if .DisplayName}} The user's name is {{.DisplayName}}.{{end}}"

// Prompts used when closing a conversation.
const (
	SummaryPrompt = "Summarize this conversation in 3–4 lines."
	TitlePrompt   = "Generate a short 2–4 word title. Only the title."
)

// Config defines tuning parameters for the Engine's behavior.
//
// Lock contention is configured on the threadstate.Store, which owns the
// per-thread locks; the Engine only bounds its own model calls.
//
// Example:
//
//	cfg := engine.DefaultConfig
//	cfg.ServiceTimeout = 10 * time.Second
type Config struct {
	// ServiceTimeout bounds each summary or title generation during Close.
	// Handlers carry their own timeout (handler.Options.ServiceTimeout).
	ServiceTimeout time.Duration

	// SystemPrompt is the preamble template for new threads. It may refer to
	// {{.UserID}} and {{.DisplayName}}.
	SystemPrompt string

	// MaxTitleWords caps the generated conversation title.
	MaxTitleWords int
}

// DefaultConfig provides the default configuration values.
var DefaultConfig = Config{
	ServiceTimeout: 20 * time.Second,
	SystemPrompt:   DefaultSystemPrompt,
	MaxTitleWords:  4,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Conversations receives the record written on close. Defaults to a
	// volatile in-memory store.
	Conversations core.ConversationStore

	// Logger defaults to NoOp.
	Logger logging.Logger

	// Metrics defaults to NoOp.
	Metrics metrics.Recorder

	// Callbacks holds lifecycle observers. Defaults to an empty manager.
	Callbacks *CallbackManager
}

// TurnRequest is the input of HandleTurn. An empty ThreadID starts a new
// thread under a freshly generated id.
type TurnRequest struct {
	ThreadID string
	Text     string
	User     core.UserContext
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	ThreadID string      `json:"thread_id"`
	Reply    string      `json:"response"`
	Intent   core.Intent `json:"-"`
}

// CloseRequest is the input of Close.
type CloseRequest struct {
	ThreadID string
	User     core.UserContext
}

// CloseResult reports what a close did. OK is false when summary
// generation or persistence failed; the thread is reset either way.
type CloseResult struct {
	ThreadID string `json:"thread_id,omitempty"`
	OK       bool   `json:"ok"`
	Saved    bool   `json:"saved"`
	Title    string `json:"title,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Engine orchestrates conversation turns and conversation close.
//
// Every operation on a thread runs under the thread's exclusive lock from
// the threadstate.Store, so turns and closes on one thread are serialized
// while different threads run fully in parallel. State is written back only
// once a turn is complete: a turn that is rejected (validation, busy) leaves
// no trace, and a turn that starts always ends with exactly one user and one
// assistant message appended.
//
// Turn flow:
//  1. Validate the text and thread id, generating an id when absent
//  2. Acquire the thread lock
//  3. Initialize the thread with the rendered system preamble if needed
//  4. Append the user message and classify its intent
//  5. Run the intent's handler, replacing failures with an apology
//  6. Append the reply and persist the state
//
// Close flow:
//  1. Acquire the thread lock
//  2. Skip generation for threads with at most one message
//  3. Generate a summary, then a title conditioned on the summary
//  4. Upsert the conversation record keyed by (user, thread)
//  5. Reset the thread, regardless of the outcome of steps 3 and 4
type Engine struct {
	states   *threadstate.Store
	registry *handler.Registry
	llm      model.Model
	opts     Options
}

// New creates an Engine. The thread store, handler registry and model are
// required; everything else has defaults.
func New(states *threadstate.Store, registry *handler.Registry, llm model.Model, optFns ...func(o *Options)) (*Engine, error) {
	if states == nil {
		return nil, errors.New("engine: thread state store is required")
	}
	if registry == nil {
		return nil, errors.New("engine: handler registry is required")
	}
	if llm == nil {
		return nil, errors.New("engine: model is required")
	}

	opts := Options{
		Config:  DefaultConfig,
		Logger:  logging.NoOpLogger{},
		Metrics: metrics.NoOp{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}
	if opts.Conversations == nil {
		opts.Conversations = store.NewMemoryStore()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Config.MaxTitleWords <= 0 {
		opts.Config.MaxTitleWords = DefaultConfig.MaxTitleWords
	}
	if _, err := util.RenderTemplate(opts.Config.SystemPrompt, core.UserContext{}); err != nil {
		return nil, fmt.Errorf("engine: invalid system prompt template: %w", err)
	}

	return &Engine{states: states, registry: registry, llm: llm, opts: opts}, nil
}

// Callbacks returns the engine's callback manager for registering hooks.
func (e *Engine) Callbacks() *CallbackManager { return e.opts.Callbacks }

var threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// ValidateThreadID reports whether id is acceptable as a thread id.
func ValidateThreadID(id string) error {
	if !threadIDPattern.MatchString(id) {
		return core.NewValidationError("thread_id", "must be 1-128 characters of letters, digits, '.', '_', ':' or '-' starting with a letter or digit")
	}
	return nil
}

// HandleTurn processes one user message on a thread and returns the reply.
//
// Errors are limited to *core.ValidationError (bad input, nothing touched),
// core.ErrBusy (thread lock not obtained in time, nothing touched) and the
// context's error when ctx ends while waiting for the lock. Service failures
// never surface here; they become apology replies.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, core.NewValidationError("message", "must not be empty")
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	} else if err := ValidateThreadID(threadID); err != nil {
		return nil, err
	}

	logger := logging.WithThread(e.opts.Logger, threadID)
	release, err := e.states.Acquire(ctx, threadID)
	if err != nil {
		if errors.Is(err, core.ErrBusy) {
			e.opts.Metrics.Busy()
			logger.Warn("thread busy")
		}
		return nil, err
	}
	defer release()

	start := time.Now()
	st := e.states.GetOrCreate(threadID)
	if !st.Initialized {
		st.Append(core.SystemMessage(e.renderPreamble(req.User)))
		st.Initialized = true
		st.Saved = false
	}
	st.Append(core.UserMessage(text))

	in := intent.Classify(text)
	reply := e.runHandler(ctx, logger, in, &handler.Request{
		ThreadID: threadID,
		History:  core.CloneMessages(st.Messages),
		User:     req.User,
	})
	st.Append(reply)
	e.states.Put(st)

	dur := time.Since(start)
	e.opts.Metrics.TurnCompleted(in.String(), dur)
	logger.Debug("turn completed", "intent", in.String(), "duration", dur)

	e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterTurn, &CallbackContext{
		ThreadID: threadID,
		User:     req.User,
		Intent:   in,
		Reply:    reply.Content,
	}, logger)

	return &TurnResult{ThreadID: threadID, Reply: reply.Content, Intent: in}, nil
}

func (e *Engine) renderPreamble(user core.UserContext) string {
	out, err := util.RenderTemplate(e.opts.Config.SystemPrompt, user)
	if err != nil {
		// validated in New; only execution errors can land here
		e.opts.Logger.Error("rendering system prompt failed", "error", err)
		return e.opts.Config.SystemPrompt
	}
	return out
}

// runHandler invokes the handler for in and guarantees a well-formed
// assistant reply, recovering from panics.
func (e *Engine) runHandler(ctx context.Context, logger logging.Logger, in core.Intent, req *handler.Request) (reply core.Message) {
	h, ok := e.registry.Lookup(in)
	if !ok {
		logger.Error("no handler registered", "intent", in.String())
		e.opts.Metrics.HandlerFailed(in.String())
		return core.AssistantMessage(handler.ApologyText)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", "intent", in.String(), "panic", fmt.Sprint(r))
			e.opts.Metrics.HandlerFailed(in.String())
			reply = core.AssistantMessage(handler.ApologyText)
		}
	}()

	reply = h.Handle(ctx, req)
	if reply.Role != core.RoleAssistant || strings.TrimSpace(reply.Content) == "" {
		logger.Warn("handler returned malformed reply", "intent", in.String(), "role", string(reply.Role))
		e.opts.Metrics.HandlerFailed(in.String())
		return core.AssistantMessage(handler.ApologyText)
	}
	if reply.Content == handler.ApologyText {
		e.opts.Metrics.HandlerFailed(in.String())
	}
	return reply
}

// Close summarizes, titles and persists a thread, then resets it so the
// next turn on the same id starts a fresh conversation.
//
// An empty thread id is a no-op that reports success. Only validation errors,
// core.ErrBusy and context errors are returned as errors; generation and
// persistence failures are reported through CloseResult.OK and Error.
func (e *Engine) Close(ctx context.Context, req CloseRequest) (*CloseResult, error) {
	if req.ThreadID == "" {
		return &CloseResult{OK: true}, nil
	}
	if err := ValidateThreadID(req.ThreadID); err != nil {
		return nil, err
	}

	threadID := req.ThreadID
	logger := logging.WithThread(e.opts.Logger, threadID)
	release, err := e.states.Acquire(ctx, threadID)
	if err != nil {
		if errors.Is(err, core.ErrBusy) {
			e.opts.Metrics.Busy()
			logger.Warn("thread busy")
		}
		return nil, err
	}
	defer release()

	res := e.close(ctx, logger, threadID, req.User)
	e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterClose, &CallbackContext{
		ThreadID: threadID,
		User:     req.User,
		Close:    res,
	}, logger)
	return res, nil
}

// close runs with the thread lock held.
func (e *Engine) close(ctx context.Context, logger logging.Logger, threadID string, user core.UserContext) *CloseResult {
	st, ok := e.states.Get(threadID)
	if !ok || len(st.Messages) <= 1 {
		if ok {
			e.states.Reset(threadID)
		}
		e.opts.Metrics.CloseCompleted(metrics.CloseSkipped)
		logger.Debug("close skipped")
		return &CloseResult{ThreadID: threadID, OK: true}
	}

	fail := func(stage string, err error) *CloseResult {
		logger.Error("close failed", "stage", stage, "error", err)
		e.states.Reset(threadID)
		e.opts.Metrics.CloseCompleted(metrics.CloseFailed)
		return &CloseResult{ThreadID: threadID, OK: false, Error: fmt.Sprintf("%s failed: %v", stage, err)}
	}

	summary, err := e.generate(ctx, SummaryPrompt, Transcript(st.Messages))
	if err != nil {
		return fail("summary generation", err)
	}
	rawTitle, err := e.generate(ctx, TitlePrompt, summary)
	if err != nil {
		return fail("title generation", err)
	}
	title := sanitizeTitle(rawTitle, e.opts.Config.MaxTitleWords)

	userID := user.UserID
	if userID == "" {
		userID = handler.AnonymousUser
	}
	rec := &core.ConversationRecord{
		ThreadID: threadID,
		UserID:   userID,
		Title:    title,
		Summary:  summary,
	}
	if err := e.upsert(ctx, rec); err != nil {
		return fail("persistence", err)
	}

	st.Saved = true
	e.states.Put(st)
	e.states.Reset(threadID)

	e.opts.Metrics.CloseCompleted(metrics.CloseSaved)
	logger.Info("conversation saved", "user_id", userID, "title", title)
	return &CloseResult{ThreadID: threadID, OK: true, Saved: true, Title: title, Summary: summary}
}

func (e *Engine) generate(ctx context.Context, instruction, input string) (string, error) {
	if t := e.opts.Config.ServiceTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return model.Complete(ctx, e.llm, []core.Message{
		core.SystemMessage(instruction),
		core.UserMessage(input),
	})
}

func (e *Engine) upsert(ctx context.Context, rec *core.ConversationRecord) error {
	if t := e.opts.Config.ServiceTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return e.opts.Conversations.UpsertConversation(ctx, rec)
}

// Transcript renders messages as "Role: content" lines.
func Transcript(msgs []core.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, transcriptLabel(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func transcriptLabel(r core.Role) string {
	switch r {
	case core.RoleSystem:
		return "System"
	case core.RoleUser:
		return "User"
	case core.RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

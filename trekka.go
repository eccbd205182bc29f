// Package trekka provides a high-level façade over the conversation engine
// and its collaborators (thread state, capability services, persistence and
// logging). Most applications interact with this package by:
//  1. Creating a Trekka via New() with a text-generation model, optionally
//     overriding the default in-memory services
//  2. Calling HandleTurn for every user message
//  3. Calling CloseConversation when the user starts a new chat
//
// The façade delegates orchestration to engine.Engine while keeping setup
// concise. All defaults are safe for local development and testing;
// production deployments typically supply a durable conversation store, real
// capability clients and a structured logger.
package trekka

import (
	"context"
	"errors"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/engine"
	"github.com/hupe1980/trekka/handler"
	"github.com/hupe1980/trekka/knowledge"
	"github.com/hupe1980/trekka/logging"
	"github.com/hupe1980/trekka/metrics"
	"github.com/hupe1980/trekka/model"
	"github.com/hupe1980/trekka/store"
	"github.com/hupe1980/trekka/threadstate"
)

// Options configures the Trekka instance.
type Options struct {
	// Engine configuration (service timeout, system prompt, title length)
	EngineConfig engine.Config

	// Handler configuration (per-call timeout, result counts, news domains).
	// Its Logger is replaced by Options.Logger when unset.
	Handler handler.Options

	// States holds live threads. Defaults to threadstate.New with the
	// package defaults (5s lock timeout, 30m idle eviction).
	States *threadstate.Store

	// Conversations persists closed conversations and favorite
	// destinations. Defaults to a volatile in-memory store.
	Conversations core.ConversationStore

	// Capability services. A nil Retriever becomes an empty knowledge
	// index; the other services answer with their unavailable reply when nil.
	Retriever    core.Retriever
	Encyclopedia core.Encyclopedia
	Searcher     core.Searcher
	Weather      core.WeatherService

	// Logger (defaults to NoOp logger if nil). A non-NoOp logger also
	// receives an info entry per completed turn and close.
	Logger logging.Logger

	// Metrics (defaults to NoOp recorder if nil)
	Metrics metrics.Recorder
}

// Trekka is the high-level façade aggregating the engine and its services.
type Trekka struct {
	opts   Options
	engine *engine.Engine
}

// New creates a Trekka instance around llm. Any unset service is initialized
// with an in-memory implementation.
func New(llm model.Model, optFns ...func(o *Options)) (*Trekka, error) {
	if llm == nil {
		return nil, errors.New("trekka: model is required")
	}

	hdefaults := handler.DefaultOptions()
	hdefaults.Logger = nil

	opts := Options{
		EngineConfig:  engine.DefaultConfig,
		Handler:       hdefaults,
		Conversations: store.NewMemoryStore(),
		Retriever:     knowledge.NewInMemoryIndex(),
		Logger:        logging.NoOpLogger{},
		Metrics:       metrics.NoOp{},
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
	if opts.Handler.Logger == nil {
		opts.Handler.Logger = opts.Logger
	}
	if opts.States == nil {
		opts.States = threadstate.New(func(o *threadstate.Options) { o.Logger = opts.Logger })
	}

	hopts := opts.Handler
	registry, err := handler.NewDefaultRegistry(handler.Services{
		Model:         llm,
		Retriever:     opts.Retriever,
		Encyclopedia:  opts.Encyclopedia,
		Searcher:      opts.Searcher,
		Weather:       opts.Weather,
		Conversations: opts.Conversations,
	}, func(o *handler.Options) { *o = hopts })
	if err != nil {
		return nil, err
	}

	e, err := engine.New(opts.States, registry, llm, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Conversations = opts.Conversations
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, err
	}

	if _, silent := opts.Logger.(logging.NoOpLogger); !silent {
		e.Callbacks().RegisterCallback(engine.NewLoggingCallback(engine.CallbackAfterTurn, opts.Logger))
		e.Callbacks().RegisterCallback(engine.NewLoggingCallback(engine.CallbackAfterClose, opts.Logger))
	}

	return &Trekka{opts: opts, engine: e}, nil
}

// Engine exposes the underlying engine, e.g. to register callbacks.
func (t *Trekka) Engine() *engine.Engine { return t.engine }

// HandleTurn processes one user message. An empty threadID starts a new
// thread; the generated id is returned in the result.
func (t *Trekka) HandleTurn(ctx context.Context, threadID, text string, user core.UserContext) (*engine.TurnResult, error) {
	return t.engine.HandleTurn(ctx, engine.TurnRequest{ThreadID: threadID, Text: text, User: user})
}

// CloseConversation summarizes and persists the thread and resets it.
func (t *Trekka) CloseConversation(ctx context.Context, threadID string, user core.UserContext) (*engine.CloseResult, error) {
	return t.engine.Close(ctx, engine.CloseRequest{ThreadID: threadID, User: user})
}

// Conversations lists the user's saved conversations, newest first.
func (t *Trekka) Conversations(ctx context.Context, userID string) ([]*core.ConversationRecord, error) {
	return t.opts.Conversations.ListConversations(ctx, userID)
}

// DeleteConversation removes a saved conversation. It returns
// core.ErrNotFound when the user has no such conversation.
func (t *Trekka) DeleteConversation(ctx context.Context, userID, threadID string) error {
	return t.opts.Conversations.DeleteConversation(ctx, userID, threadID)
}

// Favorites lists the user's saved destinations in insertion order.
func (t *Trekka) Favorites(ctx context.Context, userID string) ([]*core.FavoriteDestination, error) {
	return t.opts.Conversations.ListFavoriteDestinations(ctx, userID)
}

// Package handler implements one capability handler per intent. A handler
// consumes the conversation history and returns exactly one assistant
// message. Handlers never return errors: every service failure is turned
// into a fixed, user-facing sentence so the engine can always append a reply.
package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/logging"
	"github.com/hupe1980/trekka/model"
)

// Fixed replies.
const (
	ApologyText          = "Sorry, I'm having trouble responding right now. Please try again in a moment."
	NoWikipediaText      = "No Wikipedia data found."
	NoSearchResultsText  = "I couldn't find anything relevant on the web for that."
	NoCityText           = "Sorry, I could not detect a city in your message."
	NoNewsText           = "I couldn't find recent Nepali news right now."
	MissingDestination   = "Please tell me which destination you'd like me to save."
	SavedDestinationText = "Got it! I've saved that destination for you."
	SaveFailedText       = "Sorry, I couldn't save that destination right now."
)

// Request is the input of a single handler invocation. History already ends
// with the current user message.
type Request struct {
	ThreadID string
	History  []core.Message
	User     core.UserContext
}

// LatestUserText returns the content of the most recent user message.
func (r *Request) LatestUserText() string { return core.LatestUserText(r.History) }

// Handler produces the reply for one intent.
type Handler interface {
	Intent() core.Intent
	Handle(ctx context.Context, req *Request) core.Message
}

// Options configures handler behavior shared across intents.
type Options struct {
	// ServiceTimeout bounds each external call a handler makes.
	ServiceTimeout time.Duration
	Logger         logging.Logger

	KnowledgeTopK    int
	SearchMaxResults int
	ForecastDays     int
	// RephraseAbove is the forecast line count above which the forecast is
	// rephrased by the model instead of returned verbatim.
	RephraseAbove int

	NewsQueryPrefix string
	NewsMaxResults  int
	NewsDomains     []string
}

// DefaultOptions returns the defaults used by every constructor.
func DefaultOptions() Options {
	return Options{
		ServiceTimeout:   20 * time.Second,
		Logger:           logging.NoOpLogger{},
		KnowledgeTopK:    4,
		SearchMaxResults: 3,
		ForecastDays:     3,
		RephraseAbove:    3,
		NewsQueryPrefix:  "Nepal ",
		NewsMaxResults:   5,
		NewsDomains:      []string{"onlinekhabar.com", "setopati.com", "ratopati.com"},
	}
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return opts
}

// base carries the behavior every handler shares: bounded external calls
// with uniform logging.
type base struct {
	intent core.Intent
	opts   Options
}

func newBase(in core.Intent, optFns []func(o *Options)) base {
	return base{intent: in, opts: buildOptions(optFns)}
}

// Intent implements Handler.
func (b base) Intent() core.Intent { return b.intent }

// call runs fn with the per-call service timeout and logs its outcome.
func (b base) call(ctx context.Context, target string, fn func(ctx context.Context) error) error {
	if b.opts.ServiceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.ServiceTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	logging.LogCall(b.opts.Logger, target, time.Since(start), err, "intent", b.intent.String())
	return err
}

// complete is a bounded model.Complete.
func (b base) complete(ctx context.Context, llm model.Model, target string, msgs []core.Message) (string, error) {
	if llm == nil {
		return "", fmt.Errorf("%s: no model configured", target)
	}
	var out string
	err := b.call(ctx, target, func(ctx context.Context) error {
		var err error
		out, err = model.Complete(ctx, llm, msgs)
		return err
	})
	return out, err
}

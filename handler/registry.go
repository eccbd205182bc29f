package handler

import (
	"fmt"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/model"
)

// Registry maps every intent to exactly one handler.
type Registry struct {
	handlers map[core.Intent]Handler
}

// NewRegistry builds a registry and verifies it is exhaustive: each intent
// must be served by exactly one handler.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[core.Intent]Handler, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("nil handler")
		}
		in := h.Intent()
		if !in.Valid() {
			return nil, fmt.Errorf("handler for invalid intent %d", int(in))
		}
		if _, dup := r.handlers[in]; dup {
			return nil, fmt.Errorf("duplicate handler for intent %q", in)
		}
		r.handlers[in] = h
	}
	for _, in := range core.Intents() {
		if _, ok := r.handlers[in]; !ok {
			return nil, fmt.Errorf("no handler for intent %q", in)
		}
	}
	return r, nil
}

// Lookup returns the handler for in.
func (r *Registry) Lookup(in core.Intent) (Handler, bool) {
	h, ok := r.handlers[in]
	return h, ok
}

// Services bundles the collaborators the default handlers need. Nil
// services make the matching handler answer with its unavailable reply.
type Services struct {
	Model         model.Model
	Retriever     core.Retriever
	Encyclopedia  core.Encyclopedia
	Searcher      core.Searcher
	Weather       core.WeatherService
	Conversations core.ConversationStore
}

// NewDefaultRegistry wires the seven built-in handlers.
func NewDefaultRegistry(svc Services, optFns ...func(o *Options)) (*Registry, error) {
	return NewRegistry(
		NewChat(svc.Model, optFns...),
		NewKnowledgeLookup(svc.Model, svc.Retriever, optFns...),
		NewEncyclopedia(svc.Encyclopedia, optFns...),
		NewWebSearch(svc.Searcher, optFns...),
		NewWeather(svc.Model, svc.Weather, optFns...),
		NewNews(svc.Model, svc.Searcher, optFns...),
		NewSavePreference(svc.Conversations, optFns...),
	)
}

package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/model"
)

// KnowledgeLookup answers from the local knowledge base. Retrieval problems
// degrade to an empty context; the model still answers.
type KnowledgeLookup struct {
	base
	llm       model.Model
	retriever core.Retriever
}

// NewKnowledgeLookup creates the "local information" handler.
func NewKnowledgeLookup(llm model.Model, retriever core.Retriever, optFns ...func(o *Options)) *KnowledgeLookup {
	return &KnowledgeLookup{base: newBase(core.IntentKnowledgeLookup, optFns), llm: llm, retriever: retriever}
}

// Handle implements Handler.
func (h *KnowledgeLookup) Handle(ctx context.Context, req *Request) core.Message {
	query := req.LatestUserText()

	var passages []core.Passage
	if h.retriever != nil {
		_ = h.call(ctx, "retriever", func(ctx context.Context) error {
			var err error
			passages, err = h.retriever.Retrieve(ctx, query, h.opts.KnowledgeTopK)
			return err
		})
	}

	contents := make([]string, 0, len(passages))
	for _, p := range passages {
		contents = append(contents, p.Content)
	}

	msgs := append(core.CloneMessages(req.History),
		core.SystemMessage("Use the context below to answer naturally."),
		core.UserMessage(fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", strings.Join(contents, "\n\n"), query)),
	)
	reply, err := h.complete(ctx, h.llm, "model", msgs)
	if err != nil {
		return core.AssistantMessage(ApologyText)
	}
	return core.AssistantMessage(reply)
}

var _ Handler = (*KnowledgeLookup)(nil)

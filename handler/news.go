package handler

import (
	"context"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/model"
)

// News searches trusted Nepali outlets and has the model summarize the hits.
type News struct {
	base
	llm model.Model
	svc core.Searcher
}

// NewNews creates the news digest handler.
func NewNews(llm model.Model, svc core.Searcher, optFns ...func(o *Options)) *News {
	return &News{base: newBase(core.IntentNews, optFns), llm: llm, svc: svc}
}

// Handle implements Handler.
func (h *News) Handle(ctx context.Context, req *Request) core.Message {
	if h.svc == nil {
		return core.AssistantMessage(NoNewsText)
	}
	var articles []core.SearchResult
	err := h.call(ctx, "news", func(ctx context.Context) error {
		var err error
		articles, err = h.svc.Search(ctx, core.SearchQuery{
			Query:          h.opts.NewsQueryPrefix + req.LatestUserText(),
			MaxResults:     h.opts.NewsMaxResults,
			IncludeDomains: h.opts.NewsDomains,
		})
		return err
	})
	if err != nil || len(articles) == 0 {
		return core.AssistantMessage(NoNewsText)
	}

	msgs := append(core.CloneMessages(req.History),
		core.UserMessage("Summarize these news articles clearly:\n"+FormatResults(articles)),
	)
	reply, err := h.complete(ctx, h.llm, "model", msgs)
	if err != nil {
		return core.AssistantMessage(ApologyText)
	}
	return core.AssistantMessage(reply)
}

var _ Handler = (*News)(nil)

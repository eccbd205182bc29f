package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/trekka/core"
)

// WebSearch lists the top web results for the user's message.
type WebSearch struct {
	base
	svc core.Searcher
}

// NewWebSearch creates the web search handler.
func NewWebSearch(svc core.Searcher, optFns ...func(o *Options)) *WebSearch {
	return &WebSearch{base: newBase(core.IntentWebSearch, optFns), svc: svc}
}

// Handle implements Handler.
func (h *WebSearch) Handle(ctx context.Context, req *Request) core.Message {
	if h.svc == nil {
		return core.AssistantMessage(ApologyText)
	}
	var results []core.SearchResult
	err := h.call(ctx, "search", func(ctx context.Context) error {
		var err error
		results, err = h.svc.Search(ctx, core.SearchQuery{
			Query:      req.LatestUserText(),
			MaxResults: h.opts.SearchMaxResults,
		})
		return err
	})
	if err != nil {
		return core.AssistantMessage(ApologyText)
	}
	if len(results) == 0 {
		return core.AssistantMessage(NoSearchResultsText)
	}
	return core.AssistantMessage(FormatResults(results))
}

// FormatResults renders results as numbered blocks of title, content and
// source line.
func FormatResults(results []core.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		content := r.Content
		if content == "" {
			content = "No summary"
		}
		source := r.URL
		if source == "" {
			source = r.Source
		}
		blocks = append(blocks, fmt.Sprintf("%d) %s\n%s\nSource: %s", i+1, title, content, source))
	}
	return strings.Join(blocks, "\n\n")
}

var _ Handler = (*WebSearch)(nil)

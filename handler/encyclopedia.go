package handler

import (
	"context"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/intent"
)

// Encyclopedia returns a short encyclopedia summary verbatim.
type Encyclopedia struct {
	base
	svc core.Encyclopedia
}

// NewEncyclopedia creates the encyclopedia handler.
func NewEncyclopedia(svc core.Encyclopedia, optFns ...func(o *Options)) *Encyclopedia {
	return &Encyclopedia{base: newBase(core.IntentEncyclopedia, optFns), svc: svc}
}

// Handle implements Handler.
func (h *Encyclopedia) Handle(ctx context.Context, req *Request) core.Message {
	if h.svc == nil {
		return core.AssistantMessage(NoWikipediaText)
	}
	text := req.LatestUserText()
	topic := intent.StripKeywords(text, core.IntentEncyclopedia)
	if topic == "" {
		topic = text
	}

	var summary string
	err := h.call(ctx, "encyclopedia", func(ctx context.Context) error {
		var err error
		summary, err = h.svc.Summarize(ctx, topic)
		return err
	})
	if err != nil || summary == "" {
		return core.AssistantMessage(NoWikipediaText)
	}
	return core.AssistantMessage(summary)
}

var _ Handler = (*Encyclopedia)(nil)

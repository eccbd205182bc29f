package handler

import (
	"context"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/model"
)

// Chat replies with a free-form generation over the whole history.
type Chat struct {
	base
	llm model.Model
}

// NewChat creates the fallback conversational handler.
func NewChat(llm model.Model, optFns ...func(o *Options)) *Chat {
	return &Chat{base: newBase(core.IntentChat, optFns), llm: llm}
}

// Handle implements Handler.
func (h *Chat) Handle(ctx context.Context, req *Request) core.Message {
	reply, err := h.complete(ctx, h.llm, "model", req.History)
	if err != nil {
		return core.AssistantMessage(ApologyText)
	}
	return core.AssistantMessage(reply)
}

var _ Handler = (*Chat)(nil)

package handler

import (
	"context"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/intent"
)

// AnonymousUser owns favorites saved by callers without a user id.
const AnonymousUser = "anonymous"

// SavePreference stores the destination named in the message as a favorite.
type SavePreference struct {
	base
	store core.ConversationStore
}

// NewSavePreference creates the save handler.
func NewSavePreference(store core.ConversationStore, optFns ...func(o *Options)) *SavePreference {
	return &SavePreference{base: newBase(core.IntentSavePreference, optFns), store: store}
}

// Handle implements Handler. Messages routed here only because a longer
// word contains "save" ("what have I saved?") name no destination.
func (h *SavePreference) Handle(ctx context.Context, req *Request) core.Message {
	text := req.LatestUserText()
	if !intent.HasKeyword(text, core.IntentSavePreference) {
		return core.AssistantMessage(MissingDestination)
	}
	destination := intent.StripKeywords(text, core.IntentSavePreference)
	if destination == "" {
		return core.AssistantMessage(MissingDestination)
	}
	if h.store == nil {
		return core.AssistantMessage(SaveFailedText)
	}
	userID := req.User.UserID
	if userID == "" {
		userID = AnonymousUser
	}
	err := h.call(ctx, "store", func(ctx context.Context) error {
		_, err := h.store.CreateFavoriteDestination(ctx, userID, destination)
		return err
	})
	if err != nil {
		return core.AssistantMessage(SaveFailedText)
	}
	return core.AssistantMessage(SavedDestinationText)
}

var _ Handler = (*SavePreference)(nil)

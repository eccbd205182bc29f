package core

import "context"

// Retriever returns knowledge-base passages relevant to a query. An empty
// result is not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Encyclopedia produces a short summary for a topic. Implementations return
// ErrNotFound (possibly wrapped) when no article matches.
type Encyclopedia interface {
	Summarize(ctx context.Context, topic string) (string, error)
}

// Searcher queries a web search backend. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)
}

// WeatherService returns a structured, line-oriented multi-day forecast.
type WeatherService interface {
	Forecast(ctx context.Context, city string, days int) (string, error)
}

// ConversationStore is the persistence collaborator. The engine only issues
// UpsertConversation and CreateFavoriteDestination; the read and delete
// operations serve the outer HTTP surface.
type ConversationStore interface {
	UpsertConversation(ctx context.Context, rec *ConversationRecord) error
	CreateFavoriteDestination(ctx context.Context, userID, name string) (*FavoriteDestination, error)
	ListConversations(ctx context.Context, userID string) ([]*ConversationRecord, error)
	DeleteConversation(ctx context.Context, userID, threadID string) error
	ListFavoriteDestinations(ctx context.Context, userID string) ([]*FavoriteDestination, error)
}

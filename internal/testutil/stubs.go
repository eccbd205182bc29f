package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/trekka/core"
)

// WeatherFunc adapts a function to core.WeatherService.
type WeatherFunc func(ctx context.Context, city string, days int) (string, error)

// Forecast implements core.WeatherService.
func (f WeatherFunc) Forecast(ctx context.Context, city string, days int) (string, error) {
	return f(ctx, city, days)
}

// SearchFunc adapts a function to core.Searcher.
type SearchFunc func(ctx context.Context, q core.SearchQuery) ([]core.SearchResult, error)

// Search implements core.Searcher.
func (f SearchFunc) Search(ctx context.Context, q core.SearchQuery) ([]core.SearchResult, error) {
	return f(ctx, q)
}

// EncyclopediaFunc adapts a function to core.Encyclopedia.
type EncyclopediaFunc func(ctx context.Context, topic string) (string, error)

// Summarize implements core.Encyclopedia.
func (f EncyclopediaFunc) Summarize(ctx context.Context, topic string) (string, error) {
	return f(ctx, topic)
}

// RetrieverFunc adapts a function to core.Retriever.
type RetrieverFunc func(ctx context.Context, query string, k int) ([]core.Passage, error)

// Retrieve implements core.Retriever.
func (f RetrieverFunc) Retrieve(ctx context.Context, query string, k int) ([]core.Passage, error) {
	return f(ctx, query, k)
}

// MockConversationStore is a testify mock of core.ConversationStore.
type MockConversationStore struct {
	mock.Mock
}

// UpsertConversation implements core.ConversationStore.
func (m *MockConversationStore) UpsertConversation(ctx context.Context, rec *core.ConversationRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// CreateFavoriteDestination implements core.ConversationStore.
func (m *MockConversationStore) CreateFavoriteDestination(ctx context.Context, userID, name string) (*core.FavoriteDestination, error) {
	args := m.Called(ctx, userID, name)
	fav, _ := args.Get(0).(*core.FavoriteDestination)
	return fav, args.Error(1)
}

// ListConversations implements core.ConversationStore.
func (m *MockConversationStore) ListConversations(ctx context.Context, userID string) ([]*core.ConversationRecord, error) {
	args := m.Called(ctx, userID)
	recs, _ := args.Get(0).([]*core.ConversationRecord)
	return recs, args.Error(1)
}

// DeleteConversation implements core.ConversationStore.
func (m *MockConversationStore) DeleteConversation(ctx context.Context, userID, threadID string) error {
	args := m.Called(ctx, userID, threadID)
	return args.Error(0)
}

// ListFavoriteDestinations implements core.ConversationStore.
func (m *MockConversationStore) ListFavoriteDestinations(ctx context.Context, userID string) ([]*core.FavoriteDestination, error) {
	args := m.Called(ctx, userID)
	favs, _ := args.Get(0).([]*core.FavoriteDestination)
	return favs, args.Error(1)
}

var (
	_ core.WeatherService    = WeatherFunc(nil)
	_ core.Searcher          = SearchFunc(nil)
	_ core.Encyclopedia      = EncyclopediaFunc(nil)
	_ core.Retriever         = RetrieverFunc(nil)
	_ core.ConversationStore = (*MockConversationStore)(nil)
)

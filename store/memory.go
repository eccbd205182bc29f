package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/trekka/core"
)

type convKey struct{ userID, threadID string }

// MemoryStore is a volatile core.ConversationStore. Returned records are
// copies; callers cannot mutate stored data.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[convKey]core.ConversationRecord
	favorites     []core.FavoriteDestination
	nextID        int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[convKey]core.ConversationRecord)}
}

// UpsertConversation implements core.ConversationStore.
func (m *MemoryStore) UpsertConversation(_ context.Context, rec *core.ConversationRecord) error {
	if rec == nil || rec.UserID == "" || rec.ThreadID == "" {
		return core.NewValidationError("conversation", "user id and thread id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	k := convKey{rec.UserID, rec.ThreadID}
	stored := *rec
	if existing, ok := m.conversations[k]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.conversations[k] = stored
	return nil
}

// CreateFavoriteDestination implements core.ConversationStore.
func (m *MemoryStore) CreateFavoriteDestination(_ context.Context, userID, name string) (*core.FavoriteDestination, error) {
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return nil, core.NewValidationError("destination", "user id and name are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	fav := core.FavoriteDestination{ID: m.nextID, UserID: userID, Name: name, CreatedAt: time.Now().UTC()}
	m.favorites = append(m.favorites, fav)
	out := fav
	return &out, nil
}

// ListConversations implements core.ConversationStore. Records are ordered
// by creation time, newest first; re-saving a thread does not move it.
func (m *MemoryStore) ListConversations(_ context.Context, userID string) ([]*core.ConversationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*core.ConversationRecord{}
	for k, rec := range m.conversations {
		if k.userID != userID {
			continue
		}
		cp := rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ThreadID < out[j].ThreadID
	})
	return out, nil
}

// DeleteConversation implements core.ConversationStore.
func (m *MemoryStore) DeleteConversation(_ context.Context, userID, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := convKey{userID, threadID}
	if _, ok := m.conversations[k]; !ok {
		return core.ErrNotFound
	}
	delete(m.conversations, k)
	return nil
}

// ListFavoriteDestinations implements core.ConversationStore.
func (m *MemoryStore) ListFavoriteDestinations(_ context.Context, userID string) ([]*core.FavoriteDestination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*core.FavoriteDestination{}
	for _, f := range m.favorites {
		if f.UserID != userID {
			continue
		}
		cp := f
		out = append(out, &cp)
	}
	return out, nil
}

var _ core.ConversationStore = (*MemoryStore)(nil)

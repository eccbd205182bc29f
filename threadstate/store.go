package threadstate

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/logging"
)

// Options configures a Store.
type Options struct {
	// LockTimeout bounds how long Acquire waits for a busy thread before
	// returning core.ErrBusy. Zero waits until the context is done.
	LockTimeout time.Duration
	// IdleTTL evicts states not written for this long. Zero disables eviction.
	IdleTTL time.Duration
	// CleanupInterval is how often expired states are purged.
	CleanupInterval time.Duration
	Logger          logging.Logger
}

// Store is the process-local thread state registry.
type Store struct {
	states *cache.Cache
	locks  *keyedLocker
	opts   Options
}

// New creates a Store with optional configuration.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		LockTimeout:     5 * time.Second,
		IdleTTL:         30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	states := cache.New(ttl, opts.CleanupInterval)
	logger := opts.Logger
	states.OnEvicted(func(id string, _ any) {
		logger.Debug("thread state evicted", "thread_id", id)
	})

	return &Store{states: states, locks: newKeyedLocker(), opts: opts}
}

// Acquire takes the exclusive lock for threadID. The returned release func
// is idempotent and must be called exactly once the caller is done.
func (s *Store) Acquire(ctx context.Context, threadID string) (release func(), err error) {
	return s.locks.acquire(ctx, threadID, s.opts.LockTimeout)
}

// GetOrCreate returns a clone of the state for threadID, materializing an
// empty uninitialized state when none exists.
func (s *Store) GetOrCreate(threadID string) *core.ThreadState {
	if v, ok := s.states.Get(threadID); ok {
		return v.(*core.ThreadState).Clone()
	}
	fresh := core.NewThreadState(threadID)
	if err := s.states.Add(threadID, fresh, cache.DefaultExpiration); err != nil {
		// lost a race with a concurrent creator
		if v, ok := s.states.Get(threadID); ok {
			return v.(*core.ThreadState).Clone()
		}
	}
	return fresh.Clone()
}

// Get returns a clone of the state for threadID without creating one.
func (s *Store) Get(threadID string) (*core.ThreadState, bool) {
	v, ok := s.states.Get(threadID)
	if !ok {
		return nil, false
	}
	return v.(*core.ThreadState).Clone(), true
}

// Put stores a clone of st and refreshes its idle timer.
func (s *Store) Put(st *core.ThreadState) {
	if st == nil {
		return
	}
	cp := st.Clone()
	cp.UpdatedAt = time.Now().UTC()
	s.states.Set(cp.ID, cp, cache.DefaultExpiration)
}

// Reset empties the state for threadID and clears its flags. The entry is
// kept so the next turn starts a fresh conversation on the same id.
func (s *Store) Reset(threadID string) {
	st := core.NewThreadState(threadID)
	if v, ok := s.states.Get(threadID); ok {
		st = v.(*core.ThreadState).Clone()
		st.Clear()
	}
	st.UpdatedAt = time.Now().UTC()
	s.states.Set(threadID, st, cache.DefaultExpiration)
}

// Len reports the number of stored states, including expired states the
// janitor has not purged yet.
func (s *Store) Len() int {
	return s.states.ItemCount()
}

package threadstate

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/trekka/core"
)

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// keyedLocker hands out one mutex-like semaphore per key. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type keyedLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{entries: make(map[string]*lockEntry)}
}

func (k *keyedLocker) ref(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *keyedLocker) unref(key string, e *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// acquire blocks until key is free, ctx is done, or timeout elapses. A
// non-positive timeout waits on ctx alone.
func (k *keyedLocker) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	e := k.ref(key)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case e.sem <- struct{}{}:
	case <-expired:
		k.unref(key, e)
		return nil, core.ErrBusy
	case <-ctx.Done():
		k.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.unref(key, e)
		})
	}, nil
}

func (k *keyedLocker) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

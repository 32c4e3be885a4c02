package sync

import (
	"context"
	"sync"
)

// KeyedMutex hands out one exclusive section per key.
// Sections for different keys never block each other.
// Locks are created on first use and dropped again once no caller holds or waits for them,
// so the set of keys does not grow without bound.
// The zero value is ready for use.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyedLock
}

type keyedLock struct {
	// sem is a binary semaphore, a channel so waiting can be cancelled.
	sem  chan struct{}
	refs int
}

// Lock blocks until the section for key is free or ctx is done.
// On success the returned function releases the section and must be called exactly once.
func (k *KeyedMutex[K]) Lock(ctx context.Context, key K) (unlock func(), err error) {
	l := k.acquire(key)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.release(key, l)
		})
	}, nil
}

// TryLock acquires the section for key without waiting.
func (k *KeyedMutex[K]) TryLock(key K) (unlock func(), ok bool) {
	l := k.acquire(key)
	select {
	case l.sem <- struct{}{}:
	default:
		k.release(key, l)
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.release(key, l)
		})
	}, true
}

func (k *KeyedMutex[K]) acquire(key K) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[K]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *KeyedMutex[K]) release(key K, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// size reports how many keys currently have a lock allocated.
func (k *KeyedMutex[K]) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	r := require.New(t)
	var km KeyedMutex[string]

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(t.Context(), "model")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	r.Equal(int32(1), maxInside.Load())
	r.Zero(km.size(), "locks must be released once unused")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	r := require.New(t)
	var km KeyedMutex[string]

	unlockA, err := km.Lock(t.Context(), "a")
	r.NoError(err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		defer close(done)
		unlockB, err := km.Lock(t.Context(), "b")
		assert.NoError(t, err)
		unlockB()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedMutex_LockHonoursContext(t *testing.T) {
	r := require.New(t)
	var km KeyedMutex[string]

	unlock, err := km.Lock(t.Context(), "a")
	r.NoError(err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "a")
	r.ErrorIs(err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotent
	r.Zero(km.size())
}

func TestKeyedMutex_TryLock(t *testing.T) {
	r := require.New(t)
	var km KeyedMutex[int]

	unlock, ok := km.TryLock(1)
	r.True(ok)
	_, ok = km.TryLock(1)
	r.False(ok)
	unlock()

	unlock, ok = km.TryLock(1)
	r.True(ok)
	unlock()
}

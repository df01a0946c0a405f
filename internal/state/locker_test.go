package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSerialized(t *testing.T, locker Locker, userID int64) {
	t.Helper()

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			unlock, err := locker.Lock(ctx, userID)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			current := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if current <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, current) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
}

func TestKeyedMutex_SerializesSameUser(t *testing.T) {
	m := NewKeyedMutex()
	assertSerialized(t, m, 42)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_DifferentUsersDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, 1)
	require.NoError(t, err)
	defer unlockA()

	ctxB, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	unlockB, err := m.Lock(ctxB, 2)
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_TimesOut(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlock, err := m.Lock(ctx, 7)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err = m.Lock(waitCtx, 7)
	assert.ErrorIs(t, err, ErrStateLocked)

	unlock()
	assert.Equal(t, 0, m.Len())
}

func TestRedisLocker_SerializesSameUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	assertSerialized(t, NewRedisLocker(client, testLogger()), 77)
}

func TestRedisLocker_ReleaseOnlyOwnLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, testLogger())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 5)
	require.NoError(t, err)

	// Simulate expiry and takeover by another instance.
	mr.Del("user:lock:5")
	require.NoError(t, mr.Set("user:lock:5", "someone-else"))

	unlock()

	value, err := mr.Get("user:lock:5")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewRedisLocker(client, testLogger())

	unlock, err := locker.Lock(context.Background(), 9)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, 9)
	assert.ErrorIs(t, err, ErrStateLocked)
}

func TestChainLocker_ReleasesAcquiredOnFailure(t *testing.T) {
	client, _ := setupTestRedis(t)
	local := NewKeyedMutex()
	redisLocker := NewRedisLocker(client, testLogger())
	chain := ChainLocker{local, redisLocker}

	// Hold the distributed lock from "another instance".
	held, err := redisLocker.Lock(context.Background(), 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = chain.Lock(ctx, 3)
	assert.ErrorIs(t, err, ErrStateLocked)
	assert.Equal(t, 0, local.Len())

	held()

	unlock, err := chain.Lock(context.Background(), 3)
	require.NoError(t, err)
	unlock()
}

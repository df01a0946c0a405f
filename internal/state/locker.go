package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "user:lock:%d"
	lockTTL            = 10 * time.Second
	lockRetryInterval  = 25 * time.Millisecond
)

var (
	// ErrStateLocked indicates that the user's previous message is still being processed.
	ErrStateLocked = errors.New("state is locked, try again later")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
)

// Unlock releases a lock obtained from a Locker.
type Unlock func()

// Locker serializes dialog turns of a single user.
type Locker interface {
	// Lock blocks until the user's lock is held or ctx is done.
	Lock(ctx context.Context, userID int64) (Unlock, error)
}

// KeyedMutex is an in-process Locker with one mutex per user.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedLock)}
}

// Lock implements Locker.
func (m *KeyedMutex) Lock(ctx context.Context, userID int64) (Unlock, error) {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			m.release(userID, l)
		}, nil
	case <-ctx.Done():
		m.release(userID, l)
		return nil, fmt.Errorf("%w: %v", ErrStateLocked, ctx.Err())
	}
}

func (m *KeyedMutex) release(userID int64, l *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, userID)
	}
}

// Len returns the number of users currently holding or waiting for a lock.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// releaseScript deletes the lock only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes turns across bot instances with a SETNX lock.
type RedisLocker struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisLocker creates a distributed Locker.
func NewRedisLocker(client *redis.Client, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLocker{client: client, log: log, ttl: lockTTL}
}

// Lock implements Locker, polling until the lock is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, userID int64) (Unlock, error) {
	key := fmt.Sprintf(userLockKeyPattern, userID)
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrStateLocked, ctx.Err())
			}
			l.log.Error("failed to acquire user state lock", "user_id", userID, "error", err)
			return nil, fmt.Errorf("acquire user lock: %w", err)
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			l.log.Warn("user state lock still held", "user_id", userID)
			return nil, fmt.Errorf("%w: %v", ErrStateLocked, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Error("failed to release user state lock", "user_id", userID, "error", err)
		}
	}, nil
}

// ChainLocker acquires several lockers in order and releases them in reverse.
type ChainLocker []Locker

// Lock implements Locker.
func (c ChainLocker) Lock(ctx context.Context, userID int64) (Unlock, error) {
	held := make([]Unlock, 0, len(c))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	for _, locker := range c {
		unlock, err := locker.Lock(ctx, userID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, unlock)
	}

	return releaseAll, nil
}

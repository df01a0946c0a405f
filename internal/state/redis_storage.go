package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userStateKeyPattern  = "user:state:%d"
	userStateScanPattern = "user:state:*"
	stateScanBatchCount  = 100
)

// deleteUnchangedScript removes a state only if it still holds the bytes the
// cleaner decided were stale.
var deleteUnchangedScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStorage persists user dialog states in Redis as JSON documents.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage initializes a Redis-backed Storage. A positive ttl makes
// Redis expire states on its own in addition to CleanupOldStates.
func NewRedisStorage(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

// GetState returns the stored user state or ErrStateNotFound when absent.
func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	data, err := s.client.Get(ctx, redisUserStateKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}

		s.log.Error("failed to get state from redis", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get user state: %w", err)
	}

	var state UserState
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Error("failed to decode user state", "user_id", userID, "error", err)
		return nil, fmt.Errorf("decode user state: %w", err)
	}

	return &state, nil
}

// SetState overwrites the stored state and stamps UpdatedAt.
func (s *RedisStorage) SetState(ctx context.Context, userID int64, state *UserState) error {
	stored := *state
	stored.UserID = userID
	stored.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(stored)
	if err != nil {
		s.log.Error("failed to encode user state", "user_id", userID, "error", err)
		return fmt.Errorf("encode user state: %w", err)
	}

	if err := s.client.Set(ctx, redisUserStateKey(userID), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save state in redis", "user_id", userID, "error", err)
		return fmt.Errorf("save user state: %w", err)
	}

	state.UpdatedAt = stored.UpdatedAt
	return nil
}

// ClearState removes the stored state for the given user.
func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, redisUserStateKey(userID)).Err(); err != nil {
		s.log.Error("failed to clear user state", "user_id", userID, "error", err)
		return fmt.Errorf("clear user state: %w", err)
	}

	return nil
}

// CleanupOldStates scans all state keys and deletes the stale ones.
func (s *RedisStorage) CleanupOldStates(ctx context.Context, maxAge time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-maxAge)
	var removed int64

	err := s.scan(ctx, func(key string, raw []byte, state *UserState) error {
		if !state.UpdatedAt.Before(threshold) {
			return nil
		}
		// A turn may have saved a fresh state since the scan read this one.
		n, err := deleteUnchangedScript.Run(ctx, s.client, []string{key}, raw).Int64()
		if err != nil {
			return fmt.Errorf("delete stale state %s: %w", key, err)
		}
		removed += n
		return nil
	})

	return removed, err
}

// CountStates groups stored users by their current state.
func (s *RedisStorage) CountStates(ctx context.Context) (map[State]int, error) {
	counts := make(map[State]int)
	err := s.scan(ctx, func(_ string, _ []byte, state *UserState) error {
		counts[state.CurrentState]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *RedisStorage) scan(ctx context.Context, visit func(key string, raw []byte, state *UserState) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, userStateScanPattern, stateScanBatchCount).Result()
		if err != nil {
			s.log.Error("failed to scan user states", "error", err)
			return fmt.Errorf("scan user states: %w", err)
		}

		for _, key := range keys {
			if _, err := extractUserID(key); err != nil {
				s.log.Warn("unable to parse user id from state key", slog.String("key", key), slog.Any("error", err))
				continue
			}

			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return fmt.Errorf("fetch user state %s: %w", key, err)
			}

			var state UserState
			if err := json.Unmarshal(data, &state); err != nil {
				s.log.Warn("skipping undecodable user state", "key", key, "error", err)
				continue
			}

			if err := visit(key, data, &state); err != nil {
				return err
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func redisUserStateKey(userID int64) string {
	return fmt.Sprintf(userStateKeyPattern, userID)
}

func extractUserID(key string) (int64, error) {
	idx := strings.LastIndexByte(key, ':')
	if idx < 0 {
		return 0, fmt.Errorf("invalid key format: %s", key)
	}

	return strconv.ParseInt(key[idx+1:], 10, 64)
}

package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// The global deadline is at most a minute ahead, so its key may expire well
// after it has passed. Operation hashes never expire: attempt counts persist
// until a success resets them.
const redisGlobalTTL = 10 * time.Minute

const (
	fieldAttempts     = "attempts"
	fieldLastAttempt  = "last_attempt"
	fieldBackoffUntil = "backoff_until"
)

// RedisStore shares governor state between processes through Redis hashes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Operation loads the state hash for name.
func (s *RedisStore) Operation(ctx context.Context, name string) (OperationState, error) {
	if s == nil || s.client == nil {
		return OperationState{}, errors.New("rate limit redis: nil client")
	}
	values, errGet := s.client.HGetAll(ctx, s.operationKey(name)).Result()
	if errGet != nil {
		return OperationState{}, errGet
	}
	if len(values) == 0 {
		return OperationState{}, nil
	}
	attempts, _ := strconv.Atoi(values[fieldAttempts])
	return OperationState{
		Attempts:     attempts,
		LastAttempt:  parseMillis(values[fieldLastAttempt]),
		BackoffUntil: parseMillis(values[fieldBackoffUntil]),
	}, nil
}

// SaveOperation writes the state hash for name.
func (s *RedisStore) SaveOperation(ctx context.Context, name string, state OperationState) error {
	if s == nil || s.client == nil {
		return errors.New("rate limit redis: nil client")
	}
	return s.client.HSet(ctx, s.operationKey(name),
		fieldAttempts, state.Attempts,
		fieldLastAttempt, formatMillis(state.LastAttempt),
		fieldBackoffUntil, formatMillis(state.BackoffUntil),
	).Err()
}

// GlobalBackoffUntil reads the global cooldown deadline.
func (s *RedisStore) GlobalBackoffUntil(ctx context.Context) (time.Time, error) {
	if s == nil || s.client == nil {
		return time.Time{}, errors.New("rate limit redis: nil client")
	}
	raw, errGet := s.client.Get(ctx, s.globalKey()).Result()
	if errors.Is(errGet, redis.Nil) {
		return time.Time{}, nil
	}
	if errGet != nil {
		return time.Time{}, errGet
	}
	return parseMillis(raw), nil
}

// SetGlobalBackoffUntil writes the global cooldown deadline.
func (s *RedisStore) SetGlobalBackoffUntil(ctx context.Context, until time.Time) error {
	if s == nil || s.client == nil {
		return errors.New("rate limit redis: nil client")
	}
	return s.client.Set(ctx, s.globalKey(), formatMillis(until), redisGlobalTTL).Err()
}

func (s *RedisStore) operationKey(name string) string {
	return s.buildKey("op:" + name)
}

func (s *RedisStore) globalKey() string {
	return s.buildKey("global")
}

func (s *RedisStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(raw string) time.Time {
	ms, errParse := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if errParse != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

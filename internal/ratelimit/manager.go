package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager is a Store that prefers Redis when enabled and falls back to memory.
// State written to memory while Redis is unreachable is merged back into Redis
// on the first successful access after the breaker closes, so a cooldown
// recorded during an outage is not lost.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memoryStore    *MemoryStore
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisStore     *RedisStore
	redisClient    *redis.Client
	redisCfg       redisConfig
	breakerUntil   time.Time
	memoryDirty    bool
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() SettingsConfig { return SettingsConfig{} }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memoryStore:    NewMemoryStore(),
		newRedisClient: newRedisClient,
	}
}

// Operation reads operation state from the best available backend.
func (m *Manager) Operation(ctx context.Context, name string) (OperationState, error) {
	if store, ok := m.activeRedis(ctx); ok {
		state, errGet := store.Operation(ctx, name)
		if errGet == nil {
			return state, nil
		}
		m.tripBreaker(errGet, m.nowFn())
	}
	return m.memoryStore.Operation(ctx, name)
}

// SaveOperation writes operation state to the best available backend.
func (m *Manager) SaveOperation(ctx context.Context, name string, state OperationState) error {
	if store, ok := m.activeRedis(ctx); ok {
		errSave := store.SaveOperation(ctx, name, state)
		if errSave == nil {
			return nil
		}
		m.tripBreaker(errSave, m.nowFn())
	}
	m.markDirty()
	return m.memoryStore.SaveOperation(ctx, name, state)
}

// GlobalBackoffUntil reads the global deadline from the best available backend.
func (m *Manager) GlobalBackoffUntil(ctx context.Context) (time.Time, error) {
	if store, ok := m.activeRedis(ctx); ok {
		until, errGet := store.GlobalBackoffUntil(ctx)
		if errGet == nil {
			return until, nil
		}
		m.tripBreaker(errGet, m.nowFn())
	}
	return m.memoryStore.GlobalBackoffUntil(ctx)
}

// SetGlobalBackoffUntil writes the global deadline to the best available backend.
func (m *Manager) SetGlobalBackoffUntil(ctx context.Context, until time.Time) error {
	if store, ok := m.activeRedis(ctx); ok {
		errSet := store.SetGlobalBackoffUntil(ctx, until)
		if errSet == nil {
			return nil
		}
		m.tripBreaker(errSet, m.nowFn())
	}
	m.markDirty()
	return m.memoryStore.SetGlobalBackoffUntil(ctx, until)
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisClient == nil {
		return nil
	}
	errClose := m.redisClient.Close()
	m.redisClient = nil
	m.redisStore = nil
	return errClose
}

func (m *Manager) activeRedis(ctx context.Context) (*RedisStore, bool) {
	if m == nil {
		return nil, false
	}
	cfg := m.provider()
	if !cfg.RedisEnabled {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	if m.isBreakerActive(now) {
		return nil, false
	}
	store, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return nil, false
	}
	if store == nil {
		return nil, false
	}
	if errSync := m.syncMemory(ctx, store); errSync != nil {
		m.tripBreaker(errSync, now)
		return nil, false
	}
	return store, true
}

// markDirty records that memory holds state Redis has not seen. With Redis
// disabled memory is the primary store and nothing is pending.
func (m *Manager) markDirty() {
	if !m.provider().RedisEnabled {
		return
	}
	m.mu.Lock()
	m.memoryDirty = true
	m.mu.Unlock()
}

// syncMemory merges fallback state into Redis. The more recent attempt wins
// per operation, and cooldown deadlines only move forward.
func (m *Manager) syncMemory(ctx context.Context, store *RedisStore) error {
	m.mu.Lock()
	dirty := m.memoryDirty
	m.memoryDirty = false
	m.mu.Unlock()
	if !dirty {
		return nil
	}

	operations, globalUntil := m.memoryStore.drain()
	errSync := func() error {
		for name, local := range operations {
			remote, errGet := store.Operation(ctx, name)
			if errGet != nil {
				return errGet
			}
			merged := remote
			if local.LastAttempt.After(remote.LastAttempt) {
				merged.Attempts = local.Attempts
				merged.LastAttempt = local.LastAttempt
			}
			if local.BackoffUntil.After(merged.BackoffUntil) {
				merged.BackoffUntil = local.BackoffUntil
			}
			if errSave := store.SaveOperation(ctx, name, merged); errSave != nil {
				return errSave
			}
		}
		if globalUntil.IsZero() {
			return nil
		}
		remoteUntil, errGet := store.GlobalBackoffUntil(ctx)
		if errGet != nil {
			return errGet
		}
		if globalUntil.After(remoteUntil) {
			return store.SetGlobalBackoffUntil(ctx, globalUntil)
		}
		return nil
	}()
	if errSync != nil {
		// Put the state back so the next attempt can retry the merge.
		for name, state := range operations {
			_ = m.memoryStore.SaveOperation(ctx, name, state)
		}
		_ = m.memoryStore.SetGlobalBackoffUntil(ctx, globalUntil)
		m.mu.Lock()
		m.memoryDirty = true
		m.mu.Unlock()
		return errSync
	}
	log.Info("rate limit: redis reachable again, merged fallback state")
	return nil
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil || m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}
	if nextCfg.prefix == "" {
		nextCfg.prefix = DefaultRedisPrefix
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisStore != nil && m.redisCfg == nextCfg {
		return m.redisStore, nil
	}
	if m.redisClient != nil {
		_ = m.redisClient.Close()
		m.redisClient = nil
		m.redisStore = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisClient = client
	m.redisStore = NewRedisStore(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisStore, nil
}

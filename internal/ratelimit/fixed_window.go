package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter decides whether a keyed request is within quota.
type Limiter interface {
	Allow(key string) bool
}

// FixedWindowLimiter limits requests per key in a fixed time window.
// It counts in Redis when a client is configured, otherwise in process memory.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	redisClient *redis.Client
	redisPrefix string

	mu     sync.Mutex
	slots  map[string]windowCount
	now    func() time.Time
	nextGC time.Time
}

type windowCount struct {
	slot  int64
	count int
}

// NewRedisFixedWindowLimiter creates a Redis-backed distributed limiter.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sentiment:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		redisPrefix: prefix,
		now:         time.Now,
	}, nil
}

// NewMemoryFixedWindowLimiter creates a single-instance limiter.
func NewMemoryFixedWindowLimiter(limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		slots:  make(map[string]windowCount),
		now:    time.Now,
	}, nil
}

// Allow returns true when the key is within quota.
// On Redis failures, it fails closed and returns false.
func (l *FixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	if l.redisClient == nil {
		return l.allowMemory(key)
	}
	return l.allowRedis(key)
}

// Close releases the Redis connection pool, if any.
func (l *FixedWindowLimiter) Close() error {
	if l == nil || l.redisClient == nil {
		return nil
	}
	return l.redisClient.Close()
}

func (l *FixedWindowLimiter) windowSlot() int64 {
	return l.now().UTC().UnixMilli() / l.window.Milliseconds()
}

func (l *FixedWindowLimiter) allowRedis(key string) bool {
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true
	}
	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, key, l.windowSlot())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return res <= int64(l.limit)
}

func (l *FixedWindowLimiter) allowMemory(key string) bool {
	if l.window.Milliseconds() <= 0 {
		return true
	}
	slot := l.windowSlot()
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.After(l.nextGC) {
		for k, wc := range l.slots {
			if wc.slot < slot {
				delete(l.slots, k)
			}
		}
		l.nextGC = now.Add(l.window)
	}
	wc := l.slots[key]
	if wc.slot != slot {
		wc = windowCount{slot: slot}
	}
	wc.count++
	l.slots[key] = wc
	return wc.count <= l.limit
}

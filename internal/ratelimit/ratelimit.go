// Package ratelimit bounds how often a key may perform an action.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/jensholdgaard/player-auction/internal/clock"
)

// Limiter reports whether one more event for key fits the budget, counting
// it if so.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a per-process token-bucket limiter. Idle buckets are dropped
// once they would be full again.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	window  time.Duration
	clock   clock.Clock
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewMemory allows burst events per window for each key.
func NewMemory(burst int, window time.Duration, clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Memory{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(max(burst, 1))),
		burst:   burst,
		window:  window,
		clock:   clk,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, b := range m.buckets {
		if now.Sub(b.seen) > m.window {
			delete(m.buckets, k)
		}
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

// slidingWindowLua keeps one sorted-set member per event scored by its
// timestamp in microseconds. It returns 1 if the event was admitted.
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
    return 0
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, math.ceil(window / 1000))
return 1
`

// Redis is a sliding-window limiter shared by every replica.
type Redis struct {
	rdb    *redis.Client
	script *redis.Script
	prefix string
	limit  int
	window time.Duration
	clock  clock.Clock
}

// NewRedis allows limit events per sliding window for each key. Keys are
// namespaced under prefix.
func NewRedis(rdb *redis.Client, prefix string, limit int, window time.Duration, clk clock.Clock) *Redis {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Redis{
		rdb:    rdb,
		script: redis.NewScript(slidingWindowLua),
		prefix: prefix,
		limit:  limit,
		window: window,
		clock:  clk,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	now := r.clock.Now()
	member := fmt.Sprintf("%d-%d", now.UnixNano(), seq.next())
	res, err := r.script.Run(ctx, r.rdb,
		[]string{"ratelimit:" + r.prefix + ":" + key},
		now.UnixMicro(), r.window.Microseconds(), r.limit, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return res == 1, nil
}

type counter struct {
	mu sync.Mutex
	n  uint64
}

func (c *counter) next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

var seq counter

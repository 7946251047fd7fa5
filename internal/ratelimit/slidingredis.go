package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims expired hits, records the new one only when under the
// limit and returns {allowed, count, oldestMillis}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
  redis.call("ZADD", key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", key, window)
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local first = now
if oldest[2] then
  first = tonumber(oldest[2])
end
return {allowed, count, first}
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts hits per key in a sliding window held in a Redis sorted set.
// A nil Client or non-positive Max disables limiting.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Window time.Duration
	Max    int
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l Limiter) redisKey(key string) string {
	if l.Prefix == "" {
		return "ratelimit:" + key
	}
	return l.Prefix + key
}

// Allow records a hit for key when it fits in the window. Rejected hits are not counted.
func (l Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	if l.Client == nil || l.Max <= 0 || l.Window <= 0 {
		return Decision{Allowed: true, Limit: l.Max, Remaining: max(l.Max, 0), ResetAt: now.Add(l.Window)}, nil
	}
	windowMs := l.Window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}
	res, err := slidingWindow.Run(ctx, l.Client, []string{l.redisKey(key)},
		now.UnixMilli(), windowMs, l.Max, uuid.NewString()).Int64Slice()
	if err != nil {
		return Decision{Limit: l.Max, ResetAt: now.Add(l.Window)}, err
	}
	count := int(res[1])
	return Decision{
		Allowed:   res[0] == 1,
		Limit:     l.Max,
		Remaining: max(l.Max-count, 0),
		ResetAt:   time.UnixMilli(res[2] + windowMs),
	}, nil
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTimeout is returned when another holder keeps the lock for longer than MaxWait.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

var errNoClient = errors.New("lock: redis client not configured")

// unlock deletes the key only while it still carries our token.
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

// Locker is a Redis mutual-exclusion lock keyed per basket.
type Locker struct {
	R            *redis.Client
	Prefix       string
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls; zero waits until ctx is done.
	MaxWait time.Duration
}

// WithLock runs fn while holding key. The lock is released when fn returns
// and expires on its own after ttl if the holder dies.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errNoClient
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	redisKey := l.Prefix + key
	token := uuid.NewString()
	if err := l.acquire(ctx, redisKey, token, ttl); err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w: %s", ErrTimeout, key)
		}
		return err
	}
	defer l.release(redisKey, token)
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	waitCtx := ctx
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.MaxWait)
		defer cancel()
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	timedOut := func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}

	ticker := time.NewTicker(backoff)
	defer ticker.Stop()
	for {
		acquired, err := l.R.SetNX(waitCtx, key, token, ttl).Result()
		switch {
		case err != nil && waitCtx.Err() != nil:
			return timedOut()
		case err != nil:
			return err
		case acquired:
			return nil
		}
		select {
		case <-waitCtx.Done():
			return timedOut()
		case <-ticker.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = unlock.Run(ctx, l.R, []string{key}, token).Err()
}

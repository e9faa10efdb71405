package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/odyssey-erp/odyssey-costing/internal/shared"
)

// ErrLockBusy indicates a key still held by another owner after waiting.
var ErrLockBusy = errors.New("lock: key busy")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds keys across processes with SET NX PX. Each key carries a
// random token so only its owner can release it; TTL bounds how long a
// crashed owner blocks others.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedisLocker builds a locker. wait bounds how long Lock polls a busy key.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, poll: 25 * time.Millisecond}
}

// Lock acquires every key in sorted order.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = shared.SortLockKeys(keys...)
	tokens := make(map[string]string, len(keys))
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		token := uuid.NewString()
		if err := l.acquire(ctx, key, token); err != nil {
			l.release(held, tokens)
			return nil, err
		}
		tokens[key] = token
		held = append(held, key)
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.release(held, tokens) })
	}, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	backoff := retry.WithMaxDuration(l.wait, retry.WithJitter(l.poll/2, retry.NewConstant(l.poll)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(ErrLockBusy)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	return nil
}

func (l *RedisLocker) release(keys []string, tokens map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		_ = releaseScript.Run(ctx, l.client, []string{keys[i]}, tokens[keys[i]]).Err()
	}
}

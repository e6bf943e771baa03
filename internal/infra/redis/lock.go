// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"integrity-pipeline/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisLocker is a single-owner lease. A tick that cannot take it is skipped, so it
// never retries.
type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrLockHeld
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

var luaExtend = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

// Extend resets the lease ttl if token still owns key.
func (l *RedisLocker) Extend(ctx context.Context, key, token string, ttl time.Duration) error {
	n, err := luaExtend.Run(ctx, l.cli, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLockHeld
	}
	return nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}

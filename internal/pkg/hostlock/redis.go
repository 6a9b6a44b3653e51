package hostlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "payoutfox:worker:lock"

// releaseScript deletes the key only while it still holds our token, so a
// run whose lease expired cannot drop a newer run's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a lease shared by every host using the same Redis. The
// lease expires after TTL, which plays the role of the stale threshold.
type RedisLock struct {
	Client redis.UniversalClient
	Key    string
	TTL    time.Duration
}

// NewRedisLock returns a RedisLock on DefaultRedisKey.
func NewRedisLock(client redis.UniversalClient, ttl time.Duration) *RedisLock {
	return &RedisLock{Client: client, Key: DefaultRedisKey, TTL: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (func() error, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire redis lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.Client, []string{l.Key}, token).Err(); err != nil {
			return fmt.Errorf("release redis lock: %w", err)
		}
		return nil
	}, nil
}

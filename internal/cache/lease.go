package cache

import (
	"context"
	"fmt"
	"time"

	"lostfound-rest-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a short-lived exclusive lock so only one API instance runs a job at a time.
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLease creates a lease on key that expires after ttl if never released.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{client: client, key: key, ttl: ttl}
}

// Acquire tries to take the lease. ok is false when another holder has it.
func (l *RedisLease) Acquire(ctx context.Context) (release func(context.Context), ok bool, err error) {
	token := uid.New()

	ok, err = l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 55 * time.Minute

// releaseScript deletes the key only while it still holds our token, so a
// tick that overran its TTL cannot free a lock another instance now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock is a per-job leader lock shared by scheduler instances.
type JobLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewJobLock creates a JobLock. A non-positive ttl uses the default.
func NewJobLock(client *redis.Client, ttl time.Duration) *JobLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &JobLock{
		client: client,
		prefix: "freightsettle:lock:",
		ttl:    ttl,
	}
}

// Acquire tries to take the lock for job. acquired is false when another
// instance holds it.
func (l *JobLock) Acquire(ctx context.Context, job string) (string, bool, error) {
	token := ulid.Make().String()

	ok, err := l.client.SetNX(ctx, l.prefix+job, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", job, err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// Release frees the lock if token still owns it.
func (l *JobLock) Release(ctx context.Context, job, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + job}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", job, err)
	}
	return nil
}

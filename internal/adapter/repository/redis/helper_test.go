package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
)

// newTestJobLock returns a lock backed by an in-memory redis that is torn
// down with the test.
func newTestJobLock(t *testing.T, ttl time.Duration) (*JobLock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewJobLock(client, ttl), mr
}

// lockOwner returns the token stored for job, or "" when the lock is free.
func lockOwner(t *testing.T, mr *miniredis.Miniredis, lock *JobLock, job string) string {
	t.Helper()

	key := lock.prefix + job
	if !mr.Exists(key) {
		return ""
	}
	token, err := mr.Get(key)
	if err != nil {
		t.Fatalf("read lock %s: %v", key, err)
	}
	return token
}

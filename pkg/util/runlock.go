package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLock is a SetNX-based mutex around the escalation scan. It keeps
// overlapping scheduler ticks (or a second replica) from scanning
// concurrently, which would race the history ledger dedup check.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	return &RunLock{rdb: rdb, ttl: ttl}
}

// Acquire tries to take the named lock.
// Returns true when this caller holds it.
// When Redis is unavailable the lock fails open: a missed scan is worse
// than a rare duplicate suppressed later by the history throttle.
func (l *RunLock) Acquire(ctx context.Context, name string) bool {
	key := fmt.Sprintf("runlock:%s", name)

	ok, err := l.rdb.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release frees the named lock. The TTL covers the crash case.
func (l *RunLock) Release(ctx context.Context, name string) {
	key := fmt.Sprintf("runlock:%s", name)
	_ = l.rdb.Del(ctx, key).Err()
}

package cache

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker implements generic.Locker with Redis locks, so the advance cap is
// enforced across every server process sharing the database.
type Locker struct {
	locks *redislock.Client
	ttl   time.Duration
	retry time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{
		locks: redislock.New(client),
		ttl:   ttl,
		retry: 50 * time.Millisecond,
	}
}

// Lock blocks until key is obtained or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.locks.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if err != nil {
		return nil, err
	}
	return func() {
		// Release with a fresh context: the caller's may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(ctx)
	}, nil
}

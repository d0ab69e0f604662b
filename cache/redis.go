/*
Package cache holds the Redis adapters: read-model cache with key
invalidation, and a distributed lock for the advance monthly cap.

GENERATIONS:
  Values are stored under a versioned key, "<key>@<generation>". Invalidate
  bumps the generation instead of deleting the value, so a reader that
  computed its value before a write can only store it under a generation
  nobody reads any more. Old generations expire with the TTL.

  reader: VersionedKey -> GetObject -> (miss) compute -> SetObject

A nil *Redis is a valid no-op cache, so the server runs without Redis.

SEE ALSO:
  - generic/hooks.go: CacheInvalidator, CacheKeys
  - generic/locker.go: Locker
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and pings it.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Client exposes the underlying client for the lock.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}

// Invalidate implements generic.CacheInvalidator by bumping the generation
// of every key.
func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if r == nil || len(keys) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, k := range keys {
		pipe.Incr(ctx, generationKey(k))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// VersionedKey qualifies key with its current generation. Call it before
// computing the value to cache.
func (r *Redis) VersionedKey(ctx context.Context, key string) (string, error) {
	if r == nil {
		return key, nil
	}
	gen, err := r.client.Get(ctx, generationKey(key)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return key, err
	}
	return fmt.Sprintf("%s@%d", key, gen), nil
}

// InvalidatePrefix invalidates every key under prefix: known generations are
// bumped and cached values are deleted. Used after bulk changes that publish
// no per-entry events, such as a database reset.
func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) error {
	if r == nil {
		return nil
	}

	var bumped []string
	iter := r.client.Scan(ctx, 0, generationKey(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		bumped = append(bumped, strings.TrimPrefix(iter.Val(), generationPrefix))
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if err := r.Invalidate(ctx, bumped...); err != nil {
		return err
	}

	batch := make([]string, 0, scanBatch)
	iter = r.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

const (
	generationPrefix = "gen:"
	scanBatch        = 100
)

func generationKey(key string) string { return generationPrefix + key }

// GetObject loads key into dest. found is false on a miss.
func (r *Redis) GetObject(ctx context.Context, key string, dest any) (found bool, err error) {
	if r == nil {
		return false, nil
	}
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetObject stores obj as JSON under key with the configured TTL.
func (r *Redis) SetObject(ctx context.Context, key string, obj any) error {
	if r == nil {
		return nil
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, b, r.ttl).Err()
}

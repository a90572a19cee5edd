package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "diayouth:"

// RedisBackend keeps entries as plain keys with a TTL and each tag as a set
// of the keys it covers.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(ctx context.Context, addr string) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBackend{rdb: rdb}, nil
}

func entryKey(key string) string { return keyPrefix + "list:" + key }
func tagKey(tag string) string   { return keyPrefix + "tag:" + tag }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.rdb.Get(ctx, entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryKey(key), value, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, tagKey(tag), entryKey(key))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Invalidate(ctx context.Context, tag string) error {
	keys, err := b.rdb.SMembers(ctx, tagKey(tag)).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}

	keys = append(keys, tagKey(tag))
	if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}

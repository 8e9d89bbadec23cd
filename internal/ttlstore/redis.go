package ttlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store, safe for multi-instance deployments.
// Redis expires keys itself, so Sweep has nothing to do.
type RedisStore struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix (default "genmedia:ttl:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// NewRedisStore creates a store on a connected *goredis.Client or *goredis.ClusterClient.
func NewRedisStore(client goredis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: "genmedia:ttl:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ttlstore/redis: parse url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ttlstore/redis: ping: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(k string) string {
	return s.keyPrefix + k
}

// compareAndSetScript swaps a value only when it matches.
// KEYS[1] = key
// ARGV[1] = expected value
// ARGV[2] = new value
// ARGV[3] = ttl in milliseconds
//
// Returns 1 when swapped, 0 otherwise.
var compareAndSetScript = goredis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current ~= ARGV[1] then
    return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", tonumber(ARGV[3]))
return 1
`)

// incrByScript increments a counter and sets its expiry on creation.
// KEYS[1] = key
// ARGV[1] = delta
// ARGV[2] = ttl in milliseconds
var incrByScript = goredis.NewScript(`
local n = redis.call("INCRBY", KEYS[1], ARGV[1])
if n == tonumber(ARGV[1]) then
    redis.call("PEXPIRE", KEYS[1], tonumber(ARGV[2]))
end
return n
`)

// SetNX implements Store.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ttlstore/redis: setnx: %w", err)
	}
	return ok, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("ttlstore/redis: set: %w", err)
	}
	return nil
}

// CompareAndSet implements Store.
func (s *RedisStore) CompareAndSet(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	result, err := compareAndSetScript.Run(ctx, s.client,
		[]string{s.key(key)},
		old, value, ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("ttlstore/redis: compare-and-set: %w", err)
	}
	return result == 1, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ttlstore/redis: get: %w", err)
	}
	return val, true, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("ttlstore/redis: delete: %w", err)
	}
	return nil
}

// IncrBy implements Store.
func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	n, err := incrByScript.Run(ctx, s.client, []string{s.key(key)}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("ttlstore/redis: incrby: %w", err)
	}
	return n, nil
}

// Sweep implements Store.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store. Call Connect before use.
func NewRedisStore(cfg Config) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Connect verifies the connection with a PING
func (s *RedisStore) Connect(ctx context.Context) error {
	return s.Ping(ctx)
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the value stored at key
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", mapErr(err)
	}
	return val, nil
}

// Set stores value at key with a TTL
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return mapErr(err)
	}
	return nil
}

// SetNX stores value at key only if the key does not exist
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, mapErr(err)
	}
	return ok, nil
}

// GetDel returns the value at key and deletes it
func (s *RedisStore) GetDel(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		return "", mapErr(err)
	}
	return val, nil
}

// Delete removes keys. Missing keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return mapErr(err)
	}
	return nil
}

// TTL returns the remaining lifetime of key
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, mapErr(err)
	}
	// -2 means the key does not exist
	if d == -2 || d == -2*time.Second {
		return 0, ErrMiss
	}
	return d, nil
}

// Incr increments key and starts its expiry on the first hit
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, mapErr(err)
	}
	return incr.Val(), ttl.Val(), nil
}

func mapErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

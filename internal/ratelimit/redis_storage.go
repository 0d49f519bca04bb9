// Package ratelimit throttles the credential endpoints, sharing counters
// across instances through redis when it is configured.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const opTimeout = 2 * time.Second

// RedisStorage implements fiber.Storage on redis. Keys are namespaced by prefix.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
}

var _ fiber.Storage = (*RedisStorage)(nil)

// NewRedisClient connects to addr and pings it. It returns an error when the
// server is unreachable so callers can fall back to in-memory limits.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewRedisStorage wraps client
func NewRedisStorage(client redis.UniversalClient, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

func (s *RedisStorage) key(k string) string { return s.prefix + k }

// Get returns nil, nil for a missing key as fiber.Storage requires.
func (s *RedisStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores val; exp of zero means no expiry.
func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Set(ctx, s.key(key), val, exp).Err()
}

func (s *RedisStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Del(ctx, s.key(key)).Err()
}

// Reset removes every key under the prefix.
func (s *RedisStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

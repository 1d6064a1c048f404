package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/courseloop/authd/pkg/kvstore")

// RedisStore implements Store on Redis. Items are stored as JSON values
// under "<table>:<key>".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB >= 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func redisKey(table, key string) string {
	return table + ":" + key
}

// Get returns the item under (table, key), or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, table, key string) (Item, error) {
	ctx, span := tracer.Start(ctx, "RedisStore.Get",
		trace.WithAttributes(
			attribute.String("kv.table", table),
		),
	)
	defer span.End()

	data, err := s.client.Get(ctx, redisKey(table, key)).Result()
	if err == redis.Nil {
		span.SetStatus(codes.Ok, "not found")
		return nil, ErrNotFound
	} else if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redis get failed")
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var item Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "corrupt item")
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return item, nil
}

// Put durably writes the item under (table, key).
func (s *RedisStore) Put(ctx context.Context, table, key string, item Item) error {
	ctx, span := tracer.Start(ctx, "RedisStore.Put",
		trace.WithAttributes(
			attribute.String("kv.table", table),
		),
	)
	defer span.End()

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if err := s.client.Set(ctx, redisKey(table, key), data, 0).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redis set failed")
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Delete removes the item under (table, key). Absent keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, table, key string) error {
	if err := s.client.Del(ctx, redisKey(table, key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Scan visits every item in a table using SCAN, never KEYS.
func (s *RedisStore) Scan(ctx context.Context, table string, fn func(key string, item Item) error) error {
	prefix := table + ":"
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		data, err := s.client.Get(ctx, fullKey).Result()
		if err == redis.Nil {
			continue // deleted between scan and get
		} else if err != nil {
			return fmt.Errorf("redis get during scan failed: %w", err)
		}

		var item Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return fmt.Errorf("failed to unmarshal item during scan: %w", err)
		}

		if err := fn(fullKey[len(prefix):], item); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return nil
}

// HealthCheck verifies Redis connectivity.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

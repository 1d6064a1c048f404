package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryStore decorates a Store with bounded exponential-backoff retries.
// Retries apply only at this boundary; callers above it (validation in
// particular) see a single logical attempt so their latency stays
// predictable. ErrNotFound is a result, not a failure, and is never retried.
type RetryStore struct {
	next            Store
	maxAttempts     int
	initialInterval time.Duration

	// OnRetry is invoked before each retry; wired to metrics by the caller.
	OnRetry func(operation, table string)
}

// NewRetryStore wraps next with retry behavior from cfg.
func NewRetryStore(next Store, cfg Config) *RetryStore {
	maxAttempts := cfg.RetryMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	interval := cfg.RetryInitialInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &RetryStore{
		next:            next,
		maxAttempts:     maxAttempts,
		initialInterval: interval,
	}
}

func (s *RetryStore) retry(ctx context.Context, operation, table string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialInterval

	attempts := 0
	return backoff.Retry(func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		if attempts >= s.maxAttempts {
			return backoff.Permanent(err)
		}
		if s.OnRetry != nil {
			s.OnRetry(operation, table)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// Get retries transient failures, passing ErrNotFound through untouched.
func (s *RetryStore) Get(ctx context.Context, table, key string) (Item, error) {
	var item Item
	err := s.retry(ctx, "get", table, func() error {
		var err error
		item, err = s.next.Get(ctx, table, key)
		return err
	})
	return item, err
}

// Put retries transient failures. Puts are full-item overwrites, so a
// replayed write is harmless.
func (s *RetryStore) Put(ctx context.Context, table, key string, item Item) error {
	return s.retry(ctx, "put", table, func() error {
		return s.next.Put(ctx, table, key, item)
	})
}

// Delete retries transient failures; deletes are idempotent.
func (s *RetryStore) Delete(ctx context.Context, table, key string) error {
	return s.retry(ctx, "delete", table, func() error {
		return s.next.Delete(ctx, table, key)
	})
}

// Scan runs a single attempt; maintenance jobs reschedule themselves.
func (s *RetryStore) Scan(ctx context.Context, table string, fn func(key string, item Item) error) error {
	return s.next.Scan(ctx, table, fn)
}

// HealthCheck runs a single attempt.
func (s *RetryStore) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}

// Close closes the wrapped store.
func (s *RetryStore) Close() error {
	return s.next.Close()
}

// Package kvstore is the narrow contract to the external key-value store.
// Records live in logical tables and are read and written whole; no partial
// updates, no queries. Everything durable in the service goes through here.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// Well-known logical tables.
const (
	TableUsers  = "users"
	TableTokens = "tokens"
)

// ErrNotFound is returned by Get when the key has no item.
var ErrNotFound = errors.New("kvstore: item not found")

// Item is a single record in a logical table. Values are strings; numeric
// attributes are formatted by the owning component.
type Item map[string]string

// Clone returns a copy so callers never share mutable state with the store.
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// Store is the get/put contract to the backing key-value store.
type Store interface {
	// Get returns the item under (table, key), or ErrNotFound.
	Get(ctx context.Context, table, key string) (Item, error)
	// Put durably writes the item under (table, key), overwriting any
	// existing item (last-writer-wins).
	Put(ctx context.Context, table, key string, item Item) error
	// Delete removes the item under (table, key). Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, table, key string) error
	// Scan visits every item in a table. Used by maintenance jobs, never by
	// request-path code.
	Scan(ctx context.Context, table string, fn func(key string, item Item) error) error
	// HealthCheck verifies connectivity to the backend.
	HealthCheck(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Config for the key-value store backend.
type Config struct {
	Type string // "redis", "postgres", "sqlite", "memory"

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// SQL config
	SQLDriver string // "postgres" or "sqlite3"
	SQLDSN    string

	// Retry config, applied by the retry decorator at this boundary only
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Type:                 "memory",
		RedisDB:              0,
		RedisMaxRetries:      3,
		RedisPoolSize:        10,
		SQLDriver:            "sqlite3",
		RetryMaxAttempts:     3,
		RetryInitialInterval: 50 * time.Millisecond,
	}
}

package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	// SQL drivers registered for the two supported backends.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements Store on a relational database through database/sql.
// All tables share one physical relation keyed by (tbl, k); items are JSON.
// Supported drivers: "postgres" (lib/pq) and "sqlite3" (mattn/go-sqlite3).
type SQLStore struct {
	db     *sql.DB
	driver string
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS kv_items (
	tbl  TEXT NOT NULL,
	k    TEXT NOT NULL,
	item TEXT NOT NULL,
	PRIMARY KEY (tbl, k)
)`

// NewSQLStore opens the database, verifies connectivity and ensures the
// backing relation exists.
func NewSQLStore(cfg Config) (*SQLStore, error) {
	db, err := sql.Open(cfg.SQLDriver, cfg.SQLDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv_items table: %w", err)
	}

	return &SQLStore{db: db, driver: cfg.SQLDriver}, nil
}

// NewSQLStoreFromDB wraps an existing handle; used by tests with sqlmock.
func NewSQLStoreFromDB(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// rebind converts ? placeholders to $n for the postgres driver.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// Get returns the item under (table, key), or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, table, key string) (Item, error) {
	var data string
	query := s.rebind(`SELECT item FROM kv_items WHERE tbl = ? AND k = ?`)
	err := s.db.QueryRowContext(ctx, query, table, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql get failed: %w", err)
	}

	var item Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}

// Put durably writes the item under (table, key), last-writer-wins.
func (s *SQLStore) Put(ctx context.Context, table, key string, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	query := s.rebind(`
		INSERT INTO kv_items (tbl, k, item) VALUES (?, ?, ?)
		ON CONFLICT (tbl, k) DO UPDATE SET item = excluded.item`)
	if _, err := s.db.ExecContext(ctx, query, table, key, string(data)); err != nil {
		return fmt.Errorf("sql put failed: %w", err)
	}
	return nil
}

// Delete removes the item under (table, key). Absent keys are not an error.
func (s *SQLStore) Delete(ctx context.Context, table, key string) error {
	query := s.rebind(`DELETE FROM kv_items WHERE tbl = ? AND k = ?`)
	if _, err := s.db.ExecContext(ctx, query, table, key); err != nil {
		return fmt.Errorf("sql delete failed: %w", err)
	}
	return nil
}

// Scan visits every item in a table.
func (s *SQLStore) Scan(ctx context.Context, table string, fn func(key string, item Item) error) error {
	query := s.rebind(`SELECT k, item FROM kv_items WHERE tbl = ?`)
	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return fmt.Errorf("sql scan failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return fmt.Errorf("sql scan row failed: %w", err)
		}
		var item Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return fmt.Errorf("failed to unmarshal item during scan: %w", err)
		}
		if err := fn(key, item); err != nil {
			return err
		}
	}
	return rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sql health check failed: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

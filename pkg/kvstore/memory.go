package kvstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Item

	// FailNext forces the next operation to return this error; lets tests
	// exercise the fail-closed storage paths.
	FailNext error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]Item)}
}

func (s *MemoryStore) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// Get returns the item under (table, key), or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, table, key string) (Item, error) {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.tables[table][key]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

// Put writes the item under (table, key), last-writer-wins.
func (s *MemoryStore) Put(ctx context.Context, table, key string, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if s.tables[table] == nil {
		s.tables[table] = make(map[string]Item)
	}
	s.tables[table][key] = item.Clone()
	return nil
}

// Delete removes the item under (table, key).
func (s *MemoryStore) Delete(ctx context.Context, table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	delete(s.tables[table], key)
	return nil
}

// Scan visits every item in a table.
func (s *MemoryStore) Scan(ctx context.Context, table string, fn func(key string, item Item) error) error {
	s.mu.RLock()
	snapshot := make(map[string]Item, len(s.tables[table]))
	for k, v := range s.tables[table] {
		snapshot[k] = v.Clone()
	}
	s.mu.RUnlock()

	for k, v := range snapshot {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

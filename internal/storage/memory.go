package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var errReadOnly = errors.New("write in read-only transaction")

// MemoryStore keeps all keys in a map. Update stages writes and applies them
// only when the callback succeeds.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// View runs fn against a read-only view of the store
func (s *MemoryStore) View(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memoryTxn{base: s.data})
}

// Update runs fn in a read-write transaction
func (s *MemoryStore) Update(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := &memoryTxn{base: s.data, writes: make(map[string][]byte), writable: true}
	if err := fn(txn); err != nil {
		return err
	}

	for k, v := range txn.writes {
		if v == nil {
			delete(s.data, k)
			continue
		}
		s.data[k] = v
	}
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type memoryTxn struct {
	base     map[string][]byte
	writes   map[string][]byte // nil value marks a delete
	writable bool
}

func (t *memoryTxn) Get(key string) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return clone(v), nil
	}
	v, ok := t.base[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (t *memoryTxn) Set(key string, value []byte) error {
	if !t.writable {
		return errReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	t.writes[key] = clone(value)
	return nil
}

func (t *memoryTxn) Delete(key string) error {
	if !t.writable {
		return errReadOnly
	}
	t.writes[key] = nil
	return nil
}

func (t *memoryTxn) Iterate(prefix string, fn func(key string, value []byte) error) error {
	keys := make([]string, 0)
	seen := make(map[string]struct{})
	for k := range t.base {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			seen[k] = struct{}{}
		}
	}
	for k := range t.writes {
		if _, ok := seen[k]; !ok && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := t.Get(k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

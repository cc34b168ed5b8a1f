// Package storage defines the durable key-value state container shared by the
// activity, chat and profile repositories.
//
// Backends:
//   - memory: process-local map, used by tests and local development
//   - badgerkv: embedded BadgerDB
//   - pgkv: a single kv_store table in Postgres
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Txn.Get when a key does not exist
var ErrNotFound = errors.New("key not found")

// Txn is a single read or read-write transaction.
// Writes made through Set/Delete become visible to later Gets in the same Txn
// and are committed atomically when the Update callback returns nil.
type Txn interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Iterate calls fn for every key with the given prefix in ascending key order.
	Iterate(prefix string, fn func(key string, value []byte) error) error
}

// Store is a transactional key-value container
type Store interface {
	View(ctx context.Context, fn func(txn Txn) error) error
	Update(ctx context.Context, fn func(txn Txn) error) error
	Close() error
}

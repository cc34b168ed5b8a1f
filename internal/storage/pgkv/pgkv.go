// Package pgkv implements storage.Store as a single key/value table in Postgres.
package pgkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fkhayef/meetup/internal/storage"
)

const schema = `
	CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// Store is a storage.Store backed by the kv_store table
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates the kv_store table if needed and returns a store on top of db
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create kv_store table: %w", describe(err))
	}
	return &Store{db: db}, nil
}

// View runs fn inside a read-only SQL transaction
func (s *Store) View(ctx context.Context, fn func(txn storage.Txn) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", describe(err))
	}
	defer tx.Rollback()

	return fn(&pgTxn{ctx: ctx, tx: tx})
}

// Update runs fn inside a SQL transaction and commits when fn returns nil
func (s *Store) Update(ctx context.Context, fn func(txn storage.Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", describe(err))
	}
	defer tx.Rollback()

	if err := fn(&pgTxn{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", describe(err))
	}
	return nil
}

// Close closes the underlying pool
func (s *Store) Close() error {
	return s.db.Close()
}

type pgTxn struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTxn) Get(key string) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, describe(err))
	}
	return value, nil
}

func (t *pgTxn) Set(key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if value == nil {
		value = []byte{}
	}
	if _, err := t.tx.ExecContext(t.ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, describe(err))
	}
	return nil
}

func (t *pgTxn) Delete(key string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, describe(err))
	}
	return nil
}

func (t *pgTxn) Iterate(prefix string, fn func(key string, value []byte) error) error {
	query := `
		SELECT key, value
		FROM kv_store
		WHERE left(key, length($1)) = $1
		ORDER BY key COLLATE "C"
	`

	rows, err := t.tx.QueryContext(t.ctx, query, prefix)
	if err != nil {
		return fmt.Errorf("failed to scan prefix %s: %w", prefix, describe(err))
	}

	// lib/pq cannot run another statement on the connection while rows are open,
	// so drain them before handing control to fn.
	type kv struct {
		key   string
		value []byte
	}
	var entries []kv
	for rows.Next() {
		var e kv
		if err := rows.Scan(&e.key, &e.value); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate prefix %s: %w", prefix, describe(err))
	}
	rows.Close()

	for _, e := range entries {
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// describe adds the Postgres error code and detail to driver errors
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (code %s: %s)", err, pqErr.Code, pqErr.Code.Name())
	}
	return err
}

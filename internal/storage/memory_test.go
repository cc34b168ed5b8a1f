package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpdateAndView(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Update(ctx, func(txn Txn) error {
		require.NoError(t, txn.Set("a/1", []byte("one")))
		require.NoError(t, txn.Set("a/2", []byte("two")))
		require.NoError(t, txn.Set("b/1", []byte("other")))

		// Writes are visible inside the same transaction
		v, err := txn.Get("a/1")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), v)
		return nil
	})
	require.NoError(t, err)

	var keys []string
	err = s.View(ctx, func(txn Txn) error {
		return txn.Iterate("a/", func(key string, _ []byte) error {
			keys = append(keys, key)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, keys)
}

func TestMemoryStore_FailedUpdateIsDiscarded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Update(ctx, func(txn Txn) error {
		return txn.Set("k", []byte("v1"))
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, func(txn Txn) error {
		require.NoError(t, txn.Set("k", []byte("v2")))
		require.NoError(t, txn.Set("other", []byte("x")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View(ctx, func(txn Txn) error {
		v, err := txn.Get("k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), v)

		_, err = txn.Get("other")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_DeleteHidesKeyFromIterate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Update(ctx, func(txn Txn) error {
		return txn.Set("p/x", []byte("1"))
	}))

	err := s.Update(ctx, func(txn Txn) error {
		require.NoError(t, txn.Delete("p/x"))
		count := 0
		require.NoError(t, txn.Iterate("p/", func(string, []byte) error {
			count++
			return nil
		}))
		assert.Zero(t, count)
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestMemoryStore_ViewIsReadOnly(t *testing.T) {
	s := NewMemoryStore()
	err := s.View(context.Background(), func(txn Txn) error {
		return txn.Set("k", []byte("v"))
	})
	assert.Error(t, err)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type record struct {
		Name string `json:"name"`
	}

	require.NoError(t, s.Update(ctx, func(txn Txn) error {
		return SetJSON(txn, "r", record{Name: "coffee"})
	}))

	var got record
	require.NoError(t, s.View(ctx, func(txn Txn) error {
		return GetJSON(txn, "r", &got)
	}))
	assert.Equal(t, "coffee", got.Name)
}

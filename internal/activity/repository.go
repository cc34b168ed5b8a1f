package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/fkhayef/meetup/internal/storage"
)

const (
	activityPrefix     = "activity/"
	activeIndexPrefix  = "index/active/"
	createdIndexPrefix = "index/created/"
)

// Changeset is everything one store operation writes. It is committed as a
// single transaction before the in-memory index changes.
type Changeset struct {
	Put    []*Activity
	Delete []string
	// Active and Created map user id to activity id; "" clears the pointer.
	Active  map[string]string
	Created map[string]string
}

func newChangeset() *Changeset {
	return &Changeset{
		Active:  make(map[string]string),
		Created: make(map[string]string),
	}
}

func (c *Changeset) empty() bool {
	return len(c.Put) == 0 && len(c.Delete) == 0 && len(c.Active) == 0 && len(c.Created) == 0
}

// Repository persists the activity index
type Repository interface {
	Load(ctx context.Context) (*Index, error)
	Commit(ctx context.Context, cs *Changeset) error
}

// KVRepository stores activities and indices in a storage.Store
type KVRepository struct {
	store storage.Store
}

// NewRepository creates a new activity repository
func NewRepository(store storage.Store) *KVRepository {
	return &KVRepository{store: store}
}

// Load reads the whole index
func (r *KVRepository) Load(ctx context.Context) (*Index, error) {
	ix := NewIndex()

	err := r.store.View(ctx, func(txn storage.Txn) error {
		err := txn.Iterate(activityPrefix, func(key string, value []byte) error {
			a := &Activity{}
			if err := storage.DecodeJSON(key, value, a); err != nil {
				return err
			}
			ix.Activities[a.ID] = a
			return nil
		})
		if err != nil {
			return err
		}

		if err := loadPointers(txn, activeIndexPrefix, ix.ActiveOf); err != nil {
			return err
		}
		return loadPointers(txn, createdIndexPrefix, ix.CreatedOf)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}

	return ix, nil
}

func loadPointers(txn storage.Txn, prefix string, into map[string]string) error {
	return txn.Iterate(prefix, func(key string, value []byte) error {
		if len(value) > 0 {
			into[strings.TrimPrefix(key, prefix)] = string(value)
		}
		return nil
	})
}

// Commit writes a changeset atomically
func (r *KVRepository) Commit(ctx context.Context, cs *Changeset) error {
	err := r.store.Update(ctx, func(txn storage.Txn) error {
		for _, a := range cs.Put {
			if err := storage.SetJSON(txn, activityPrefix+a.ID, a); err != nil {
				return err
			}
		}
		for _, id := range cs.Delete {
			if err := txn.Delete(activityPrefix + id); err != nil {
				return err
			}
		}
		if err := writePointers(txn, activeIndexPrefix, cs.Active); err != nil {
			return err
		}
		return writePointers(txn, createdIndexPrefix, cs.Created)
	})
	if err != nil {
		return fmt.Errorf("failed to commit activity changes: %w", err)
	}
	return nil
}

func writePointers(txn storage.Txn, prefix string, pointers map[string]string) error {
	for userID, activityID := range pointers {
		if activityID == "" {
			if err := txn.Delete(prefix + userID); err != nil {
				return err
			}
			continue
		}
		if err := txn.Set(prefix+userID, []byte(activityID)); err != nil {
			return err
		}
	}
	return nil
}

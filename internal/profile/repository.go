package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/fkhayef/meetup/internal/storage"
)

const profilePrefix = "profile/"

// Repository handles profile persistence on top of a storage.Store
type Repository struct {
	store storage.Store
}

// NewRepository creates a new profile repository
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

// GetByID retrieves a profile, returning nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id string) (*Profile, error) {
	p := &Profile{}
	err := r.store.View(ctx, func(txn storage.Txn) error {
		return storage.GetJSON(txn, profilePrefix+id, p)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// List returns every profile ordered by id
func (r *Repository) List(ctx context.Context) ([]*Profile, error) {
	profiles := []*Profile{}
	err := r.store.View(ctx, func(txn storage.Txn) error {
		return txn.Iterate(profilePrefix, func(key string, value []byte) error {
			p := &Profile{}
			if err := storage.DecodeJSON(key, value, p); err != nil {
				return err
			}
			profiles = append(profiles, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// Modify loads the profile with id, lets fn change it and writes it back in
// one transaction. When the profile does not exist fn receives nil and may
// return a new one; returning nil from a nil input writes nothing.
func (r *Repository) Modify(ctx context.Context, id string, fn func(existing *Profile) (*Profile, error)) (*Profile, error) {
	var result *Profile
	err := r.store.Update(ctx, func(txn storage.Txn) error {
		key := profilePrefix + id

		var existing *Profile
		p := &Profile{}
		err := storage.GetJSON(txn, key, p)
		switch {
		case err == nil:
			existing = p
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		next, err := fn(existing)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		result = next
		return storage.SetJSON(txn, key, next)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return result, nil
}

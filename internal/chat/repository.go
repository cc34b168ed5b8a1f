package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fkhayef/meetup/internal/storage"
)

const (
	previewPrefix = "chat/preview/"
	messagePrefix = "chat/message/"
	readPrefix    = "chat/read/"
)

// Common errors
var (
	ErrChatNotFound = errors.New("chat not found")
	ErrEmptyMessage = errors.New("message needs text or an image")
)

// Repository handles chat persistence on top of a storage.Store
type Repository struct {
	store storage.Store
}

// NewRepository creates a new chat repository
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

func messageKey(chatID string, seq int) string {
	return fmt.Sprintf("%s%s/%010d", messagePrefix, chatID, seq)
}

// readKey holds how many of the chat's messages userID has seen
func readKey(chatID, userID string) string {
	return readPrefix + chatID + "/" + userID
}

// fillUnread sets p.Unread to the number of messages viewerID has not seen.
// A viewer with no read mark has seen nothing.
func fillUnread(txn storage.Txn, p *Preview, viewerID string) error {
	seen := 0
	if viewerID != "" {
		err := storage.GetJSON(txn, readKey(p.ChatID, viewerID), &seen)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	p.Unread = max(p.MessageCount-seen, 0)
	return nil
}

// UpsertPreview inserts p when no preview exists for p.ChatID. Otherwise only
// name and avatar are merged into the stored entry. It reports whether an
// insert happened.
func (r *Repository) UpsertPreview(ctx context.Context, p *Preview) (bool, error) {
	inserted := false
	err := r.store.Update(ctx, func(txn storage.Txn) error {
		key := previewPrefix + p.ChatID

		existing := &Preview{}
		err := storage.GetJSON(txn, key, existing)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			inserted = true
			return storage.SetJSON(txn, key, p)
		case err != nil:
			return err
		}

		if existing.Name == p.Name && existing.Avatar == p.Avatar {
			return nil
		}
		existing.Name = p.Name
		existing.Avatar = p.Avatar
		return storage.SetJSON(txn, key, existing)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert chat preview: %w", err)
	}
	return inserted, nil
}

// GetPreview retrieves the preview for chatID as seen by viewerID
func (r *Repository) GetPreview(ctx context.Context, chatID, viewerID string) (*Preview, error) {
	p := &Preview{}
	err := r.store.View(ctx, func(txn storage.Txn) error {
		if err := storage.GetJSON(txn, previewPrefix+chatID, p); err != nil {
			return err
		}
		return fillUnread(txn, p, viewerID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat preview: %w", err)
	}
	return p, nil
}

// ListPreviews returns every preview as seen by viewerID, most recent
// activity first
func (r *Repository) ListPreviews(ctx context.Context, viewerID string) ([]*Preview, error) {
	var previews []*Preview
	err := r.store.View(ctx, func(txn storage.Txn) error {
		err := txn.Iterate(previewPrefix, func(key string, value []byte) error {
			p := &Preview{}
			if err := storage.DecodeJSON(key, value, p); err != nil {
				return err
			}
			previews = append(previews, p)
			return nil
		})
		if err != nil {
			return err
		}
		for _, p := range previews {
			if err := fillUnread(txn, p, viewerID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chat previews: %w", err)
	}

	sort.SliceStable(previews, func(i, j int) bool {
		return previews[i].Timestamp.After(previews[j].Timestamp)
	})
	return previews, nil
}

// AppendMessage stores m under the chat's next sequence number and updates
// the preview's last message and timestamp in one transaction. The sender
// has seen everything up to and including m.
func (r *Repository) AppendMessage(ctx context.Context, m *Message) (*Preview, error) {
	p := &Preview{}
	err := r.store.Update(ctx, func(txn storage.Txn) error {
		key := previewPrefix + m.ChatID
		if err := storage.GetJSON(txn, key, p); err != nil {
			return err
		}

		if err := storage.SetJSON(txn, messageKey(m.ChatID, p.MessageCount), m); err != nil {
			return err
		}

		p.MessageCount++
		p.Unread = 0
		p.LastMessage = m.Text
		if p.LastMessage == "" {
			p.LastMessage = "Photo"
		}
		p.Timestamp = m.CreatedAt
		if err := storage.SetJSON(txn, key, p); err != nil {
			return err
		}
		return storage.SetJSON(txn, readKey(m.ChatID, m.SenderID), p.MessageCount)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return p, nil
}

// ListMessages returns the chat's messages oldest first
func (r *Repository) ListMessages(ctx context.Context, chatID string) ([]*Message, error) {
	messages := []*Message{}
	err := r.store.View(ctx, func(txn storage.Txn) error {
		if _, err := txn.Get(previewPrefix + chatID); err != nil {
			return err
		}
		return txn.Iterate(messagePrefix+chatID+"/", func(key string, value []byte) error {
			m := &Message{}
			if err := storage.DecodeJSON(key, value, m); err != nil {
				return err
			}
			messages = append(messages, m)
			return nil
		})
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// MarkRead records that userID has seen every message in chatID
func (r *Repository) MarkRead(ctx context.Context, chatID, userID string) error {
	err := r.store.Update(ctx, func(txn storage.Txn) error {
		p := &Preview{}
		if err := storage.GetJSON(txn, previewPrefix+chatID, p); err != nil {
			return err
		}
		return storage.SetJSON(txn, readKey(chatID, userID), p.MessageCount)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return ErrChatNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to mark chat as read: %w", err)
	}
	return nil
}

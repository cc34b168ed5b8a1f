package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/meetup/internal/activity"
)

var _ activity.Listener = (*Service)(nil)

// Service keeps chat previews in step with activity lifecycle events and
// handles messaging within activity chats
type Service struct {
	repo   *Repository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	// writes serialises read-modify-write cycles on previews
	writes sync.Mutex
}

// NewService creates a new chat service
func NewService(repo *Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ActivityCreated makes the new activity's chat visible
func (s *Service) ActivityCreated(ctx context.Context, a *activity.Activity) {
	s.sync(ctx, a, CreatedMessage)
}

// MemberJoined makes the activity's chat visible to the joiner
func (s *Service) MemberJoined(ctx context.Context, a *activity.Activity, m activity.Member) {
	s.sync(ctx, a, JoinedMessage(m.Name))
}

// ActivityUpdated refreshes the chat's name and avatar after an edit
func (s *Service) ActivityUpdated(ctx context.Context, a *activity.Activity) {
	s.sync(ctx, a, CreatedMessage)
}

// sync upserts the preview for a. Failures are logged and swallowed so a
// chat problem never fails an activity mutation that already committed.
func (s *Service) sync(ctx context.Context, a *activity.Activity, lastMessage string) {
	if a.ChatID == "" {
		return
	}

	avatar := a.Avatar
	if avatar == "" {
		avatar = FallbackAvatar(a.Name)
	}
	p := &Preview{
		ChatID:      a.ChatID,
		ActivityID:  a.ID,
		Name:        a.Name,
		Avatar:      avatar,
		LastMessage: lastMessage,
		Timestamp:   s.now(),
		IsGroupChat: true,
	}

	s.writes.Lock()
	inserted, err := s.repo.UpsertPreview(ctx, p)
	s.writes.Unlock()
	if err != nil {
		s.logger.Error("chat preview sync failed",
			slog.String("chat_id", a.ChatID),
			slog.String("activity_id", a.ID),
			slog.String("error", err.Error()))
		return
	}
	if inserted {
		s.logger.Debug("chat preview created", slog.String("chat_id", a.ChatID))
	}
}

// PostMessage appends a message to the chat
func (s *Service) PostMessage(ctx context.Context, chatID, senderID, senderName, text, imageURI string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && imageURI == "" {
		return nil, ErrEmptyMessage
	}

	m := &Message{
		ID:         s.newID(),
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		ImageURI:   imageURI,
		CreatedAt:  s.now(),
	}

	s.writes.Lock()
	defer s.writes.Unlock()

	if _, err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns the chat history oldest first
func (s *Service) ListMessages(ctx context.Context, chatID string) ([]*Message, error) {
	return s.repo.ListMessages(ctx, chatID)
}

// ListPreviews returns all chat previews with viewerID's unread counts,
// most recent first
func (s *Service) ListPreviews(ctx context.Context, viewerID string) ([]*Preview, error) {
	return s.repo.ListPreviews(ctx, viewerID)
}

// GetPreview returns the preview for chatID with viewerID's unread count
func (s *Service) GetPreview(ctx context.Context, chatID, viewerID string) (*Preview, error) {
	return s.repo.GetPreview(ctx, chatID, viewerID)
}

// MarkRead clears userID's unread count for a chat
func (s *Service) MarkRead(ctx context.Context, chatID, userID string) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	return s.repo.MarkRead(ctx, chatID, userID)
}

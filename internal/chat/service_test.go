package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/geo"
	"github.com/fkhayef/meetup/internal/storage"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type fixture struct {
	kv     *storage.MemoryStore
	chat   *Service
	store  *activity.Store
	now    time.Time
	nextID int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{kv: storage.NewMemoryStore(), now: t0}
	clock := func() time.Time { return f.now }
	ids := func() string {
		f.nextID++
		return fmt.Sprintf("id-%d", f.nextID)
	}

	f.chat = NewService(NewRepository(f.kv), nil)
	f.chat.now = clock
	f.chat.newID = ids

	store, err := activity.NewStore(context.Background(), activity.NewRepository(f.kv),
		activity.WithClock(clock), activity.WithIDGenerator(ids))
	require.NoError(t, err)
	store.AddListener(f.chat)
	f.store = store
	return f
}

func (f *fixture) create(t *testing.T, creator, name string) *activity.Activity {
	t.Helper()
	a, err := f.store.Create(context.Background(), activity.CreateRequest{
		Name:       name,
		Mood:       activity.MoodCoffee,
		Location:   geo.DefaultCenter,
		MaxMembers: 4,
		CreatorID:  creator,
	})
	require.NoError(t, err)
	return a
}

func TestSync_CreateInsertsPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "alice", "Coffee & Code")

	p, err := f.chat.GetPreview(ctx, a.ChatID, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, p.ActivityID)
	assert.Equal(t, "Coffee & Code", p.Name)
	assert.Equal(t, CreatedMessage, p.LastMessage)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Coffee%20%26%20Code", p.Avatar)
	assert.True(t, p.IsGroupChat)
	assert.Zero(t, p.Unread)
}

func TestSync_JoinMergesOnlyNameAndAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "alice", "Coffee Run")

	f.now = t0.Add(time.Minute)
	_, err := f.chat.PostMessage(ctx, a.ChatID, "alice", "Alice", "see you there", "")
	require.NoError(t, err)

	f.now = t0.Add(2 * time.Minute)
	_, err = f.store.Join(ctx, a.ID, "bob", "Bob", "")
	require.NoError(t, err)

	p, err := f.chat.GetPreview(ctx, a.ChatID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "see you there", p.LastMessage, "merge keeps last message")
	assert.Equal(t, 1, p.Unread, "merge keeps unread")
	assert.Equal(t, t0.Add(time.Minute), p.Timestamp, "merge keeps timestamp")
}

func TestSync_UpdateRenamesPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "alice", "Coffee Run")
	_, err := f.store.Update(ctx, "alice", activity.UpdateRequest{
		ID:         a.ID,
		Name:       "Tea Run",
		Mood:       activity.MoodCoffee,
		Avatar:     "https://example.com/tea.png",
		MaxMembers: 4,
	})
	require.NoError(t, err)

	p, err := f.chat.GetPreview(ctx, a.ChatID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Tea Run", p.Name)
	assert.Equal(t, "https://example.com/tea.png", p.Avatar)
	assert.Equal(t, CreatedMessage, p.LastMessage)
}

func TestSync_JoinInsertsMissingPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := &activity.Activity{ID: "a1", Name: "Walk", ChatID: "chat-a1"}
	f.chat.MemberJoined(ctx, a, activity.Member{ID: "bob", Name: "Bob"})

	p, err := f.chat.GetPreview(ctx, "chat-a1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob joined the activity", p.LastMessage)
}

func TestSync_StopKeepsPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "alice", "Coffee Run")
	require.NoError(t, f.store.Stop(ctx, a.ID, "alice"))

	_, err := f.chat.GetPreview(ctx, a.ChatID, "alice")
	assert.NoError(t, err)
}

func TestMessaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "alice", "Coffee Run")

	for i, text := range []string{"hi", "on my way"} {
		f.now = t0.Add(time.Duration(i+1) * time.Minute)
		_, err := f.chat.PostMessage(ctx, a.ChatID, "alice", "Alice", text, "")
		require.NoError(t, err)
	}
	_, err := f.chat.PostMessage(ctx, a.ChatID, "alice", "Alice", "", "https://example.com/p.jpg")
	require.NoError(t, err)

	messages, err := f.chat.ListMessages(ctx, a.ChatID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "hi", messages[0].Text)
	assert.Equal(t, "on my way", messages[1].Text)

	p, err := f.chat.GetPreview(ctx, a.ChatID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Unread)
	assert.Equal(t, "Photo", p.LastMessage)

	p, err = f.chat.GetPreview(ctx, a.ChatID, "alice")
	require.NoError(t, err)
	assert.Zero(t, p.Unread, "own messages are never unread")

	require.NoError(t, f.chat.MarkRead(ctx, a.ChatID, "bob"))
	p, err = f.chat.GetPreview(ctx, a.ChatID, "bob")
	require.NoError(t, err)
	assert.Zero(t, p.Unread)
}

func TestMessaging_UnreadIsPerViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "alice", "Coffee Run")

	_, err := f.chat.PostMessage(ctx, a.ChatID, "alice", "Alice", "anyone up?", "")
	require.NoError(t, err)
	_, err = f.chat.PostMessage(ctx, a.ChatID, "bob", "Bob", "me", "")
	require.NoError(t, err)

	unread := func(viewer string) int {
		t.Helper()
		p, err := f.chat.GetPreview(ctx, a.ChatID, viewer)
		require.NoError(t, err)
		return p.Unread
	}
	assert.Equal(t, 1, unread("alice"), "bob's reply")
	assert.Zero(t, unread("bob"), "sending reads everything before it")
	assert.Equal(t, 2, unread("carol"))

	previews, err := f.chat.ListPreviews(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, 2, previews[0].Unread)

	require.NoError(t, f.chat.MarkRead(ctx, a.ChatID, "alice"))
	assert.Zero(t, unread("alice"))
	assert.Equal(t, 2, unread("carol"), "read marks are per user")
}

func TestMessaging_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chat.PostMessage(ctx, "missing", "alice", "Alice", "hi", "")
	assert.ErrorIs(t, err, ErrChatNotFound)

	a := f.create(t, "alice", "Coffee Run")
	_, err = f.chat.PostMessage(ctx, a.ChatID, "alice", "Alice", "   ", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.chat.ListMessages(ctx, "missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, f.chat.MarkRead(ctx, "missing", "alice"), ErrChatNotFound)
}

func TestListPreviews_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "alice", "First")
	f.now = t0.Add(time.Minute)
	second := f.create(t, "bob", "Second")

	previews, err := f.chat.ListPreviews(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, previews, 2)
	assert.Equal(t, second.ChatID, previews[0].ChatID)
	assert.Equal(t, first.ChatID, previews[1].ChatID)
}

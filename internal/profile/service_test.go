package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/geo"
	"github.com/fkhayef/meetup/internal/storage"
	"github.com/fkhayef/meetup/internal/storage/badgerkv"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type fakePropagator struct {
	calls []string
	n     int
	err   error
}

func (f *fakePropagator) UpdateAvatar(_ context.Context, userID, avatar string) (int, error) {
	f.calls = append(f.calls, userID+"="+avatar)
	return f.n, f.err
}

func newTestService(prop AvatarPropagator) *Service {
	s := NewService(NewRepository(storage.NewMemoryStore()), prop, DefaultConfig(), nil)
	s.now = func() time.Time { return t0 }
	return s
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestProfile_Age(t *testing.T) {
	tests := []struct {
		name string
		dob  *time.Time
		want int
		ok   bool
	}{
		{"unknown", nil, 0, false},
		{"birthday passed", date(2000, time.January, 1), 26, true},
		{"birthday today", date(2000, time.March, 14), 26, true},
		{"birthday tomorrow", date(2000, time.March, 15), 25, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Profile{DateOfBirth: tt.dob}
			age, ok := p.Age(t0)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, age)
		})
	}
}

func TestService_UpsertAndGet(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	_, err := s.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	p, err := s.Upsert(ctx, "alice", UpsertRequest{Name: "Alice", DateOfBirth: date(1998, time.May, 2)})
	require.NoError(t, err)
	assert.Equal(t, 5, p.MaxAgeDifference, "default tolerance applied")

	diff := 3
	_, err = s.Upsert(ctx, "alice", UpsertRequest{Name: "Alice B", MaxAgeDifference: &diff})
	require.NoError(t, err)

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.Name)
	assert.Equal(t, 3, got.MaxAgeDifference)
	require.NotNil(t, got.DateOfBirth, "unset fields are kept")

	_, err = s.Upsert(ctx, "alice", UpsertRequest{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestService_SetAvailability(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	_, err := s.SetAvailability(ctx, "ghost", true, activity.MoodCoffee)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = s.Upsert(ctx, "alice", UpsertRequest{Name: "Alice"})
	require.NoError(t, err)

	_, err = s.SetAvailability(ctx, "alice", true, "dancing")
	assert.ErrorIs(t, err, activity.ErrInvalidMood)

	p, err := s.SetAvailability(ctx, "alice", true, activity.MoodWalk)
	require.NoError(t, err)
	assert.Equal(t, activity.MoodWalk, p.Mood)
	require.NotNil(t, p.AvailableUntil)
	assert.Equal(t, t0.Add(2*time.Hour), *p.AvailableUntil)
	assert.True(t, p.IsAvailable(t0))
	assert.False(t, p.IsAvailable(t0.Add(2*time.Hour)))

	p, err = s.SetAvailability(ctx, "alice", false, "")
	require.NoError(t, err)
	assert.Nil(t, p.AvailableUntil)
}

func TestService_SetPresence(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "alice", UpsertRequest{Name: "Alice"})
	require.NoError(t, err)

	p, err := s.SetPresence(ctx, "alice", true, &geo.DefaultCenter)
	require.NoError(t, err)
	assert.True(t, p.IsOnline)
	require.NotNil(t, p.Location)

	p, err = s.SetPresence(ctx, "alice", false, nil)
	require.NoError(t, err)
	assert.False(t, p.IsOnline)
	assert.NotNil(t, p.Location, "position is kept when not supplied")
}

func TestService_ConcurrentWritesOnBadger(t *testing.T) {
	db, err := badgerkv.Open(badgerkv.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewService(NewRepository(db), nil, DefaultConfig(), nil)
	ctx := context.Background()

	_, err = s.Upsert(ctx, "u1", UpsertRequest{Name: "Uma"})
	require.NoError(t, err)

	const writers = 50
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc := geo.Coordinate{Latitude: geo.DefaultCenter.Latitude, Longitude: float64(i)}
			_, err := s.SetPresence(ctx, "u1", i%2 == 0, &loc)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Uma", p.Name)
	require.NotNil(t, p.Location)
}

func TestService_SetAvatarPropagates(t *testing.T) {
	prop := &fakePropagator{n: 2}
	s := newTestService(prop)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "alice", UpsertRequest{Name: "Alice"})
	require.NoError(t, err)

	p, n, err := s.SetAvatar(ctx, "alice", "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "https://example.com/a.png", p.Avatar)
	assert.Equal(t, []string{"alice=https://example.com/a.png"}, prop.calls)

	prop.err = errors.New("store down")
	_, _, err = s.SetAvatar(ctx, "alice", "https://example.com/b.png")
	assert.Error(t, err)
}

func TestService_AvatarFanOutIntoActivities(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()

	store, err := activity.NewStore(ctx, activity.NewRepository(kv),
		activity.WithClock(func() time.Time { return t0 }))
	require.NoError(t, err)

	s := NewService(NewRepository(kv), store, DefaultConfig(), nil)
	s.now = func() time.Time { return t0 }

	_, err = s.Upsert(ctx, "bob", UpsertRequest{Name: "Bob"})
	require.NoError(t, err)

	a, err := store.Create(ctx, activity.CreateRequest{
		Name:       "Coffee Run",
		Mood:       activity.MoodCoffee,
		Location:   geo.DefaultCenter,
		MaxMembers: 3,
		CreatorID:  "alice",
	})
	require.NoError(t, err)
	_, err = store.Join(ctx, a.ID, "bob", "Bob", "")
	require.NoError(t, err)

	_, n, err := s.SetAvatar(ctx, "bob", "https://example.com/bob.png")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/bob.png", got.Members[1].Avatar)
}

func TestService_Candidates(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	for _, id := range []string{"carol", "alice", "bob"} {
		_, err := s.Upsert(ctx, id, UpsertRequest{Name: id})
		require.NoError(t, err)
	}

	pool, err := s.Candidates(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 3)
	assert.Equal(t, "alice", pool[0].ID)
}

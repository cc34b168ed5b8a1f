package shuffle

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/geo"
	"github.com/fkhayef/meetup/internal/profile"
	"github.com/fkhayef/meetup/internal/storage"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func born(year int) *time.Time {
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

type fakeProfiles struct {
	mu            sync.Mutex
	byID          map[string]*profile.Profile
	candidatesErr error
}

func newFakeProfiles(profiles ...*profile.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: make(map[string]*profile.Profile)}
	for _, p := range profiles {
		if p.MaxAgeDifference == 0 {
			p.MaxAgeDifference = 5
		}
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) Get(_ context.Context, id string) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (f *fakeProfiles) SetAvailability(_ context.Context, id string, available bool, mood activity.Mood) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	if available {
		until := t0.Add(2 * time.Hour)
		p.AvailableUntil = &until
		p.Mood = mood
	} else {
		p.AvailableUntil = nil
	}
	return p.Clone(), nil
}

func (f *fakeProfiles) Candidates(_ context.Context) ([]*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	out := make([]*profile.Profile, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fixture struct {
	profiles *fakeProfiles
	store    *activity.Store
	manager  *Manager
}

func newFixture(t *testing.T, seed uint64, profiles ...*profile.Profile) *fixture {
	t.Helper()
	clock := func() time.Time { return t0 }

	store, err := activity.NewStore(context.Background(), activity.NewRepository(storage.NewMemoryStore()),
		activity.WithClock(clock))
	require.NoError(t, err)

	f := &fixture{profiles: newFakeProfiles(profiles...), store: store}
	f.manager = NewManager(f.profiles, store, DefaultConfig(),
		WithClock(clock),
		WithRand(rand.New(rand.NewPCG(seed, seed))))
	return f
}

func TestFilter(t *testing.T) {
	self := &profile.Profile{ID: "me", DateOfBirth: born(1996)}
	pool := []*profile.Profile{
		self,
		{ID: "offline", IsOnline: false, Mood: activity.MoodCoffee},
		{ID: "other-mood", IsOnline: true, Mood: activity.MoodWalk},
		{ID: "same-age", IsOnline: true, Mood: activity.MoodCoffee, DateOfBirth: born(1998)},
		{ID: "too-old", IsOnline: true, Mood: activity.MoodCoffee, DateOfBirth: born(1980)},
		{ID: "unknown-age", IsOnline: true, Mood: activity.MoodCoffee},
	}
	self.IsOnline = true
	self.Mood = activity.MoodCoffee

	ids := func(list []*profile.Profile) []string {
		var out []string
		for _, p := range list {
			out = append(out, p.ID)
		}
		return out
	}

	got := Filter(self, pool, activity.MoodCoffee, 5, t0)
	assert.Equal(t, []string{"same-age", "unknown-age"}, ids(got))

	got = Filter(self, pool, activity.MoodCoffee, 20, t0)
	assert.Equal(t, []string{"same-age", "too-old", "unknown-age"}, ids(got))

	noAge := &profile.Profile{ID: "me"}
	got = Filter(noAge, pool, activity.MoodCoffee, 0, t0)
	assert.Equal(t, []string{"same-age", "too-old", "unknown-age"}, ids(got), "unknown self age skips the filter")
}

func TestManager_EmptyPoolSettlesWithNoMatch(t *testing.T) {
	f := newFixture(t, 1,
		&profile.Profile{ID: "alice", Name: "Alice"},
		&profile.Profile{ID: "bob", Name: "Bob", IsOnline: true, Mood: activity.MoodWalk},
	)
	ctx := context.Background()

	s, err := f.manager.Start(ctx, "alice", activity.MoodCoffee)
	require.NoError(t, err)
	assert.Equal(t, StateSettled, s.State)
	assert.Equal(t, OutcomeNoMatch, s.Outcome)
	assert.Empty(t, s.Picks)
	assert.Nil(t, s.Match)

	_, _, err = f.manager.Confirm(ctx, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.store.ListActive(""), "no activity is created")
}

func TestManager_MatchAndConfirm(t *testing.T) {
	f := newFixture(t, 7,
		&profile.Profile{ID: "alice", Name: "Alice", Avatar: "https://example.com/a.png"},
		&profile.Profile{ID: "bob", Name: "Bob", IsOnline: true, Mood: activity.MoodCoffee},
	)
	ctx := context.Background()

	s, err := f.manager.Start(ctx, "alice", activity.MoodCoffee)
	require.NoError(t, err)
	assert.Equal(t, StateShuffling, s.State)
	assert.Equal(t, 1, s.PoolSize)
	require.Len(t, s.Picks, 8)
	for _, p := range s.Picks {
		assert.Equal(t, "bob", p.Candidate.ID)
		assert.Equal(t, 187500*time.Microsecond, p.DisplayFor)
	}

	me, err := f.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, me.IsAvailable(t0), "start marks the user available")
	assert.Equal(t, activity.MoodCoffee, me.Mood)

	s, err = f.manager.Settle("alice")
	require.NoError(t, err)
	assert.Equal(t, StateSettled, s.State)
	require.NotNil(t, s.Match)
	assert.Equal(t, "bob", s.Match.ID)

	s, a, err := f.manager.Confirm(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, OutcomeCreated, s.Outcome)
	assert.Equal(t, a.ID, s.ActivityID)

	assert.Equal(t, "Coffee Meetup", a.Name)
	assert.Equal(t, MeetingPlaceholder, a.MeetingLocation)
	assert.Equal(t, 5, a.MaxMembers)
	assert.Equal(t, geo.DefaultCenter, a.Location)
	assert.True(t, a.IsPublic)
	require.Len(t, a.Members, 2)
	assert.Equal(t, "alice", a.Members[0].ID)
	assert.Equal(t, "https://example.com/a.png", a.Members[0].Avatar)
	assert.Equal(t, "bob", a.Members[1].ID)

	for _, id := range []string{"alice", "bob"} {
		active, ok := f.store.ActiveActivityID(id)
		assert.True(t, ok)
		assert.Equal(t, a.ID, active)
	}
	assert.Equal(t, StateIdle, f.manager.Get("alice").State)
}

func TestManager_StartPreconditions(t *testing.T) {
	until := t0.Add(time.Hour)
	f := newFixture(t, 1,
		&profile.Profile{ID: "alice", Name: "Alice"},
		&profile.Profile{ID: "busy", Name: "Busy", AvailableUntil: &until},
	)
	ctx := context.Background()

	_, err := f.manager.Start(ctx, "busy", activity.MoodCoffee)
	assert.ErrorIs(t, err, ErrAlreadyAvailable)

	_, err = f.manager.Start(ctx, "ghost", activity.MoodCoffee)
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)

	_, err = f.manager.Start(ctx, "alice", "dancing")
	assert.ErrorIs(t, err, activity.ErrInvalidMood)

	_, err = f.manager.Start(ctx, "alice", activity.MoodCoffee)
	require.NoError(t, err)
	_, err = f.manager.Start(ctx, "alice", activity.MoodCoffee)
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestManager_InvalidTransitions(t *testing.T) {
	f := newFixture(t, 1,
		&profile.Profile{ID: "alice", Name: "Alice"},
		&profile.Profile{ID: "bob", Name: "Bob", IsOnline: true, Mood: activity.MoodFood},
	)
	ctx := context.Background()

	_, err := f.manager.Settle("alice")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = f.manager.ShuffleAgain(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoSession)
	_, _, err = f.manager.Confirm(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = f.manager.Start(ctx, "alice", activity.MoodFood)
	require.NoError(t, err)

	_, _, err = f.manager.Confirm(ctx, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition, "cannot confirm while shuffling")
	_, err = f.manager.ShuffleAgain(ctx, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition, "cannot reshuffle while shuffling")

	_, err = f.manager.Settle("alice")
	require.NoError(t, err)
	_, err = f.manager.Settle("alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestManager_ShuffleAgainRefiltersPool(t *testing.T) {
	f := newFixture(t, 3,
		&profile.Profile{ID: "alice", Name: "Alice"},
		&profile.Profile{ID: "bob", Name: "Bob", IsOnline: true, Mood: activity.MoodChill},
		&profile.Profile{ID: "carol", Name: "Carol", IsOnline: true, Mood: activity.MoodChill},
	)
	ctx := context.Background()

	s, err := f.manager.Start(ctx, "alice", activity.MoodChill)
	require.NoError(t, err)
	assert.Equal(t, 2, s.PoolSize)
	_, err = f.manager.Settle("alice")
	require.NoError(t, err)

	// carol goes offline before the reshuffle
	f.profiles.byID["carol"].IsOnline = false

	s, err = f.manager.ShuffleAgain(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateShuffling, s.State)
	assert.Equal(t, 1, s.PoolSize)
	assert.Nil(t, s.Match, "previous match is discarded")
	for _, p := range s.Picks {
		assert.Equal(t, "bob", p.Candidate.ID)
	}
}

func TestManager_SameSeedSameSequence(t *testing.T) {
	people := func() []*profile.Profile {
		return []*profile.Profile{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", IsOnline: true, Mood: activity.MoodParty},
			{ID: "carol", IsOnline: true, Mood: activity.MoodParty},
			{ID: "dave", IsOnline: true, Mood: activity.MoodParty},
		}
	}
	ctx := context.Background()

	a := newFixture(t, 42, people()...)
	b := newFixture(t, 42, people()...)

	sa, err := a.manager.Start(ctx, "alice", activity.MoodParty)
	require.NoError(t, err)
	sb, err := b.manager.Start(ctx, "alice", activity.MoodParty)
	require.NoError(t, err)

	assert.Equal(t, sa.Picks, sb.Picks)
}

func TestManager_StoreRejectionIsTerminal(t *testing.T) {
	f := newFixture(t, 1,
		&profile.Profile{ID: "alice", Name: "Alice"},
		&profile.Profile{ID: "bob", Name: "Bob", IsOnline: true, Mood: activity.MoodMovie},
	)
	ctx := context.Background()

	// bob is already in a live activity
	_, err := f.store.Create(ctx, activity.CreateRequest{
		Name:       "Film night",
		Mood:       activity.MoodMovie,
		Location:   geo.DefaultCenter,
		MaxMembers: 4,
		CreatorID:  "bob",
	})
	require.NoError(t, err)

	_, err = f.manager.Start(ctx, "alice", activity.MoodMovie)
	require.NoError(t, err)
	_, err = f.manager.Settle("alice")
	require.NoError(t, err)

	s, a, err := f.manager.Confirm(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Equal(t, OutcomeCannotCreate, s.Outcome)
	assert.Equal(t, "ALREADY_IN_ACTIVITY", s.Reason)

	_, _, err = f.manager.Confirm(ctx, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition, "no retry")
	_, err = f.manager.ShuffleAgain(ctx, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s = f.manager.Cancel("alice")
	assert.Equal(t, StateIdle, s.State)
	assert.Len(t, f.store.ListActive(""), 1, "only bob's activity exists")
}

func TestManager_CancelHasNoSideEffects(t *testing.T) {
	f := newFixture(t, 1,
		&profile.Profile{ID: "alice", Name: "Alice"},
		&profile.Profile{ID: "bob", Name: "Bob", IsOnline: true, Mood: activity.MoodWalk},
	)
	ctx := context.Background()

	_, err := f.manager.Start(ctx, "alice", activity.MoodWalk)
	require.NoError(t, err)

	s := f.manager.Cancel("alice")
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, OutcomeCancelled, s.Outcome)
	assert.Empty(t, f.store.ListActive(""))
	assert.Equal(t, StateIdle, f.manager.Get("alice").State)

	assert.Equal(t, StateIdle, f.manager.Cancel("nobody").State)
}

func TestManager_FailedPoolLookupLeavesUserUnavailable(t *testing.T) {
	f := newFixture(t, 1,
		&profile.Profile{ID: "alice", Name: "Alice"},
		&profile.Profile{ID: "bob", Name: "Bob", IsOnline: true, Mood: activity.MoodCoffee},
	)
	ctx := context.Background()

	boom := errors.New("directory unavailable")
	f.profiles.candidatesErr = boom

	_, err := f.manager.Start(ctx, "alice", activity.MoodCoffee)
	assert.ErrorIs(t, err, boom)

	me, err := f.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, me.IsAvailable(t0))
	assert.Equal(t, StateIdle, f.manager.Get("alice").State)

	f.profiles.candidatesErr = nil
	s, err := f.manager.Start(ctx, "alice", activity.MoodCoffee)
	require.NoError(t, err, "the user can retry straight away")
	assert.Equal(t, StateShuffling, s.State)
}

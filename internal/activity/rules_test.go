package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/meetup/internal/geo"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func testActivity(id, creator string, maxMembers int, expiresAt time.Time, members ...string) *Activity {
	a := &Activity{
		ID:         id,
		Name:       id,
		Mood:       MoodCoffee,
		MaxMembers: maxMembers,
		CreatedBy:  creator,
		CreatedAt:  t0,
		ExpiresAt:  expiresAt,
	}
	for _, m := range append([]string{creator}, members...) {
		a.Members = append(a.Members, Member{ID: m, Name: m})
	}
	return a
}

func indexOf(activities ...*Activity) *Index {
	ix := NewIndex()
	for _, a := range activities {
		ix.Activities[a.ID] = a
		ix.CreatedOf[a.CreatedBy] = a.ID
		for _, m := range a.Members {
			ix.ActiveOf[m.ID] = a.ID
		}
	}
	return ix
}

func TestCanCreate(t *testing.T) {
	live := testActivity("live", "alice", 4, t0.Add(time.Hour))
	expired := testActivity("old", "bob", 4, t0.Add(-time.Minute))
	ix := indexOf(live, expired)
	ix.CreatedOf["carol"] = "deleted"

	assert.ErrorIs(t, CanCreate("alice", ix, t0), ErrLimitReached)
	assert.NoError(t, CanCreate("bob", ix, t0), "expired activity frees the slot")
	assert.NoError(t, CanCreate("carol", ix, t0), "dangling pointer frees the slot")
	assert.NoError(t, CanCreate("dave", ix, t0))
}

func TestCanJoin(t *testing.T) {
	target := testActivity("target", "alice", 2, t0.Add(time.Hour))
	other := testActivity("other", "bob", 4, t0.Add(time.Hour))
	stale := testActivity("stale", "erin", 4, t0.Add(-time.Hour), "frank")
	ix := indexOf(target, other, stale)

	tests := []struct {
		name          string
		userID        string
		target        *Activity
		alreadyMember bool
		wantErr       error
	}{
		{"member is a no-op", "alice", target, true, nil},
		{"active elsewhere", "bob", target, false, ErrAlreadyInActivity},
		{"expired pointer does not block", "frank", target, false, nil},
		{"free user", "zed", target, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			already, err := CanJoin(tt.userID, tt.target, ix, t0)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.alreadyMember, already)
		})
	}

	t.Run("full", func(t *testing.T) {
		full := testActivity("full", "alice", 2, t0.Add(time.Hour), "bob")
		_, err := CanJoin("zed", full, indexOf(full), t0)
		assert.ErrorIs(t, err, ErrActivityFull)
	})

	t.Run("member check wins over full", func(t *testing.T) {
		full := testActivity("full", "alice", 2, t0.Add(time.Hour), "bob")
		already, err := CanJoin("bob", full, indexOf(full), t0)
		require.NoError(t, err)
		assert.True(t, already)
	})
}

func TestCanLeaveAndStop(t *testing.T) {
	a := testActivity("a", "alice", 4, t0.Add(time.Hour), "bob")

	assert.NoError(t, CanLeave("bob", a))
	assert.ErrorIs(t, CanLeave("zed", a), ErrNotMember)

	assert.NoError(t, CanStop("alice", a))
	assert.ErrorIs(t, CanStop("bob", a), ErrNotCreator)
}

func TestCanUpdate(t *testing.T) {
	a := testActivity("a", "alice", 4, t0.Add(time.Hour), "bob", "carol")

	assert.NoError(t, CanUpdate("alice", a, 3))
	assert.ErrorIs(t, CanUpdate("alice", a, 2), ErrCapacityBelowMembers)
	assert.ErrorIs(t, CanUpdate("bob", a, 5), ErrNotCreator)
}

func TestCanRemoveMember(t *testing.T) {
	a := testActivity("a", "alice", 4, t0.Add(time.Hour), "bob")

	assert.NoError(t, CanRemoveMember("alice", a, "bob"))
	assert.ErrorIs(t, CanRemoveMember("bob", a, "alice"), ErrNotCreator)
	assert.ErrorIs(t, CanRemoveMember("alice", a, "alice"), ErrCannotRemoveCreator)
	assert.ErrorIs(t, CanRemoveMember("alice", a, "zed"), ErrNotMember)
}

func TestValidateExpiry(t *testing.T) {
	r := DefaultRules()

	assert.NoError(t, r.ValidateExpiry(t0.Add(time.Hour), t0))
	assert.NoError(t, r.ValidateExpiry(t0.Add(6*time.Hour-time.Second), t0))
	assert.ErrorIs(t, r.ValidateExpiry(t0, t0), ErrInvalidExpiry)
	assert.ErrorIs(t, r.ValidateExpiry(t0.Add(-time.Minute), t0), ErrInvalidExpiry)
	assert.ErrorIs(t, r.ValidateExpiry(t0.Add(6*time.Hour), t0), ErrInvalidExpiry)
}

func TestValidateDistance(t *testing.T) {
	r := DefaultRules()
	sf := geo.Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	oakland := geo.Coordinate{Latitude: 37.8044, Longitude: -122.2712}
	sanJose := geo.Coordinate{Latitude: 37.3382, Longitude: -121.8863}

	assert.NoError(t, r.ValidateDistance(nil, sanJose), "unknown origin skips the check")
	assert.NoError(t, r.ValidateDistance(&sf, oakland))
	assert.ErrorIs(t, r.ValidateDistance(&sf, sanJose), ErrTooFar)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "OK", Reason(nil))
	assert.Equal(t, "LIMIT_REACHED", Reason(ErrLimitReached))
	assert.Equal(t, "ACTIVITY_FULL", Reason(ErrActivityFull))
	assert.Equal(t, "INVALID_ACTIVITY", Reason(ErrInvalidMood))
	assert.Equal(t, "INTERNAL_ERROR", Reason(assert.AnError))
}

func TestMoodHelpers(t *testing.T) {
	m, err := ParseMood(" Coffee ")
	require.NoError(t, err)
	assert.Equal(t, MoodCoffee, m)

	_, err = ParseMood("dancing")
	assert.ErrorIs(t, err, ErrInvalidMood)

	assert.Equal(t, "Walk", MoodWalk.Label())
	assert.Equal(t, MoodCoffee, MoodFromEmoji("☕️"))
	assert.Equal(t, MoodMovie, MoodFromEmoji("🎬"))
	assert.Equal(t, MoodParty, MoodFromEmoji("⚽"))
	assert.Equal(t, MoodParty, MoodFromEmoji("🦄"))
}

func TestFormatTimeRemaining(t *testing.T) {
	assert.Equal(t, "Expired", FormatTimeRemaining(0))
	assert.Equal(t, "45m left", FormatTimeRemaining(45*time.Minute))
	assert.Equal(t, "1h 30m left", FormatTimeRemaining(90*time.Minute))
}

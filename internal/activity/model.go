package activity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fkhayef/meetup/internal/geo"
)

// Mood is the category of an activity, also used for shuffle matching
type Mood string

const (
	MoodCoffee Mood = "coffee"
	MoodFood   Mood = "food"
	MoodChill  Mood = "chill"
	MoodWalk   Mood = "walk"
	MoodParty  Mood = "party"
	MoodMovie  Mood = "movie"
)

// MoodAll is the list filter that matches every mood
const MoodAll = "all"

// Moods lists every valid mood in display order
var Moods = []Mood{MoodCoffee, MoodFood, MoodChill, MoodWalk, MoodParty, MoodMovie}

var moodEmoji = map[Mood]string{
	MoodCoffee: "☕️",
	MoodFood:   "🍔",
	MoodChill:  "🧘",
	MoodWalk:   "🚶",
	MoodParty:  "🎉",
	MoodMovie:  "🎬",
}

// ParseMood normalises s into a Mood
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMood, s)
	}
	return m, nil
}

// Valid reports whether m is one of the known moods
func (m Mood) Valid() bool {
	_, ok := moodEmoji[m]
	return ok
}

// DefaultEmoji returns the icon shown when an activity has no custom emoji
func (m Mood) DefaultEmoji() string {
	return moodEmoji[m]
}

// Label returns the capitalised mood name, e.g. "Coffee"
func (m Mood) Label() string {
	if m == "" {
		return ""
	}
	return strings.ToUpper(string(m[:1])) + string(m[1:])
}

// MoodFromEmoji guesses the mood of a custom emoji. Unknown emoji map to party.
func MoodFromEmoji(emoji string) Mood {
	switch {
	case strings.Contains(emoji, "☕"):
		return MoodCoffee
	case strings.Contains(emoji, "🍔"):
		return MoodFood
	case strings.Contains(emoji, "🧘"):
		return MoodChill
	case strings.Contains(emoji, "🚶"):
		return MoodWalk
	case strings.Contains(emoji, "🎬"):
		return MoodMovie
	default:
		return MoodParty
	}
}

// Member is a user's row inside an activity. Name and avatar are display
// copies of the user's profile, refreshed by Store.UpdateAvatar.
type Member struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Avatar   string          `json:"avatar"`
	Location *geo.Coordinate `json:"location,omitempty"`
	Mood     Mood            `json:"mood"`
	IsOnline bool            `json:"is_online"`
	JoinedAt time.Time       `json:"joined_at"`
}

// Activity is a time-boxed meetup pinned to a map location
type Activity struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Mood            Mood           `json:"mood"`
	Emoji           string         `json:"emoji,omitempty"`
	Avatar          string         `json:"avatar,omitempty"`
	Location        geo.Coordinate `json:"location"`
	MeetingLocation string         `json:"meeting_location"`
	Members         []Member       `json:"members"`
	MaxMembers      int            `json:"max_members"`
	CreatedBy       string         `json:"created_by"`
	IsPublic        bool           `json:"is_public"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
	ChatID          string         `json:"chat_id"`
}

// IsExpired reports whether the activity is past its expiry at now
func (a *Activity) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// MemberIndex returns the position of userID in Members, or -1
func (a *Activity) MemberIndex(userID string) int {
	for i := range a.Members {
		if a.Members[i].ID == userID {
			return i
		}
	}
	return -1
}

// HasMember reports whether userID is a member
func (a *Activity) HasMember(userID string) bool {
	return a.MemberIndex(userID) >= 0
}

// IsFull reports whether no more members can join
func (a *Activity) IsFull() bool {
	return len(a.Members) >= a.MaxMembers
}

// DisplayEmoji returns the custom emoji, falling back to the mood's icon
func (a *Activity) DisplayEmoji() string {
	if a.Emoji != "" {
		return a.Emoji
	}
	return a.Mood.DefaultEmoji()
}

// Clone returns a deep copy
func (a *Activity) Clone() *Activity {
	c := *a
	c.Members = make([]Member, len(a.Members))
	for i, m := range a.Members {
		if m.Location != nil {
			loc := *m.Location
			m.Location = &loc
		}
		c.Members[i] = m
	}
	return &c
}

// FormatTimeRemaining renders the countdown shown on activity cards
func FormatTimeRemaining(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm left", hours, minutes)
	}
	return fmt.Sprintf("%dm left", minutes)
}

// Index is the canonical state owned by the Store: every activity plus the
// two per-user pointers derived from membership and creation.
type Index struct {
	Activities map[string]*Activity
	ActiveOf   map[string]string
	CreatedOf  map[string]string
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{
		Activities: make(map[string]*Activity),
		ActiveOf:   make(map[string]string),
		CreatedOf:  make(map[string]string),
	}
}

// Live returns the activity with id if it exists and has not expired
func (ix *Index) Live(id string, now time.Time) (*Activity, bool) {
	if id == "" {
		return nil, false
	}
	a, ok := ix.Activities[id]
	if !ok || a.IsExpired(now) {
		return nil, false
	}
	return a, true
}

// sortActivities orders by creation time, then id
func sortActivities(list []*Activity) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// sortByExpiryDesc orders by expiry, newest first, then id
func sortByExpiryDesc(list []*Activity) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ExpiresAt.Equal(list[j].ExpiresAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].ExpiresAt.After(list[j].ExpiresAt)
	})
}

package shuffle

import (
	"errors"
	"time"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/profile"
)

// State is the position of a session in the matching flow
type State string

const (
	StateIdle      State = "idle"
	StateShuffling State = "shuffling"
	StateSettled   State = "settled"
)

// Outcome describes how a settled or finished session ended
type Outcome string

const (
	OutcomePending      Outcome = ""
	OutcomeMatched      Outcome = "matched"
	OutcomeNoMatch      Outcome = "no_match"
	OutcomeCreated      Outcome = "created"
	OutcomeCannotCreate Outcome = "cannot_create"
	OutcomeCancelled    Outcome = "cancelled"
)

// Common errors
var (
	ErrAlreadyAvailable  = errors.New("user is already available")
	ErrSessionActive     = errors.New("a shuffle is already in progress")
	ErrNoSession         = errors.New("no shuffle in progress")
	ErrInvalidTransition = errors.New("operation not allowed in the current shuffle state")
)

// Candidate is the public view of a matched or presented user
type Candidate struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Avatar   string        `json:"avatar,omitempty"`
	Mood     activity.Mood `json:"mood"`
	Age      *int          `json:"age,omitempty"`
	IsOnline bool          `json:"is_online"`
}

// Pick is one presentation in a shuffle sequence
type Pick struct {
	Candidate  Candidate     `json:"candidate"`
	DisplayFor time.Duration `json:"display_for"`
}

// Session is one user's pass through the matching flow
type Session struct {
	UserID     string        `json:"user_id"`
	Mood       activity.Mood `json:"mood"`
	State      State         `json:"state"`
	Outcome    Outcome       `json:"outcome,omitempty"`
	PoolSize   int           `json:"pool_size"`
	Picks      []Pick        `json:"picks,omitempty"`
	Match      *Candidate    `json:"match,omitempty"`
	ActivityID string        `json:"activity_id,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	StartedAt  time.Time     `json:"started_at"`

	pool  []*profile.Profile
	final *profile.Profile
	self  *profile.Profile
}

func (s *Session) snapshot() *Session {
	c := *s
	c.Picks = append([]Pick(nil), s.Picks...)
	if s.Match != nil {
		m := *s.Match
		c.Match = &m
	}
	c.pool, c.final, c.self = nil, nil, nil
	return &c
}

func candidateOf(p *profile.Profile, now time.Time) Candidate {
	c := Candidate{
		ID:       p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Mood:     p.Mood,
		IsOnline: p.IsOnline,
	}
	if age, ok := p.Age(now); ok {
		c.Age = &age
	}
	return c
}

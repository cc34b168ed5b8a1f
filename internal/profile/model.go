package profile

import (
	"time"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/geo"
)

// Profile is a user's directory entry. It is the canonical per-user record;
// member rows inside activities are display copies of it.
type Profile struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Avatar           string          `json:"avatar,omitempty"`
	DateOfBirth      *time.Time      `json:"date_of_birth,omitempty"`
	Mood             activity.Mood   `json:"mood,omitempty"`
	IsOnline         bool            `json:"is_online"`
	Location         *geo.Coordinate `json:"location,omitempty"`
	AvailableUntil   *time.Time      `json:"available_until,omitempty"`
	MaxAgeDifference int             `json:"max_age_difference"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Age returns whole years since DateOfBirth at now. ok is false when the
// date of birth is unknown.
func (p *Profile) Age(now time.Time) (age int, ok bool) {
	if p.DateOfBirth == nil {
		return 0, false
	}
	dob := p.DateOfBirth.UTC()
	now = now.UTC()

	age = now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, true
}

// IsAvailable reports whether the availability window is still open at now
func (p *Profile) IsAvailable(now time.Time) bool {
	return p.AvailableUntil != nil && now.Before(*p.AvailableUntil)
}

// Member converts the profile into an activity member row
func (p *Profile) Member() activity.Member {
	m := activity.Member{
		ID:       p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Mood:     p.Mood,
		IsOnline: p.IsOnline,
	}
	if p.Location != nil {
		loc := *p.Location
		m.Location = &loc
	}
	return m
}

// Clone returns a deep copy
func (p *Profile) Clone() *Profile {
	c := *p
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		c.DateOfBirth = &dob
	}
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	if p.AvailableUntil != nil {
		until := *p.AvailableUntil
		c.AvailableUntil = &until
	}
	return &c
}

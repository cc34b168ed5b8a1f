package profile

import (
	"time"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/geo"
)

// UpsertProfileRequest represents the request to create or edit a profile
type UpsertProfileRequest struct {
	Name             string          `json:"name" validate:"required,min=1,max=100"`
	Avatar           *string         `json:"avatar,omitempty" validate:"omitempty,url"`
	DateOfBirth      *time.Time      `json:"date_of_birth,omitempty"`
	MaxAgeDifference *int            `json:"max_age_difference,omitempty" validate:"omitempty,gte=0,lte=100"`
	Location         *geo.Coordinate `json:"location,omitempty"`
}

// AvailabilityRequest opens or closes the availability window
type AvailabilityRequest struct {
	Available bool   `json:"available"`
	Mood      string `json:"mood,omitempty" validate:"required_if=Available true"`
}

// PresenceRequest updates the online flag and position
type PresenceRequest struct {
	IsOnline bool            `json:"is_online"`
	Location *geo.Coordinate `json:"location,omitempty"`
}

// AvatarRequest represents the request to change a profile avatar
type AvatarRequest struct {
	Avatar string `json:"avatar" validate:"required,url"`
}

// ProfileResponse represents a profile in API responses
type ProfileResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Avatar           string          `json:"avatar,omitempty"`
	Age              *int            `json:"age,omitempty"`
	Mood             activity.Mood   `json:"mood,omitempty"`
	IsOnline         bool            `json:"is_online"`
	IsAvailable      bool            `json:"is_available"`
	AvailableUntil   *time.Time      `json:"available_until,omitempty"`
	Location         *geo.Coordinate `json:"location,omitempty"`
	MaxAgeDifference int             `json:"max_age_difference"`
}

// AvatarResponse reports the stored profile and the fan-out size
type AvatarResponse struct {
	Profile           *ProfileResponse `json:"profile"`
	ActivitiesUpdated int              `json:"activities_updated"`
}

// ToResponse converts a Profile model to a ProfileResponse DTO
func (p *Profile) ToResponse(now time.Time) *ProfileResponse {
	resp := &ProfileResponse{
		ID:               p.ID,
		Name:             p.Name,
		Avatar:           p.Avatar,
		Mood:             p.Mood,
		IsOnline:         p.IsOnline,
		IsAvailable:      p.IsAvailable(now),
		AvailableUntil:   p.AvailableUntil,
		Location:         p.Location,
		MaxAgeDifference: p.MaxAgeDifference,
	}
	if age, ok := p.Age(now); ok {
		resp.Age = &age
	}
	return resp
}

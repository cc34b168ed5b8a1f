package activity

import (
	"time"

	"github.com/fkhayef/meetup/internal/geo"
)

// CreateActivityRequest represents the request to create a new activity
type CreateActivityRequest struct {
	Name            string          `json:"name" validate:"required,min=1,max=100"`
	Mood            string          `json:"mood,omitempty"`
	Emoji           string          `json:"emoji,omitempty" validate:"max=16"`
	Avatar          string          `json:"avatar,omitempty" validate:"omitempty,url"`
	Location        geo.Coordinate  `json:"location"`
	MeetingLocation string          `json:"meeting_location" validate:"max=200"`
	MaxMembers      int             `json:"max_members" validate:"gte=1,lte=100"`
	IsPublic        bool            `json:"is_public"`
	CreatorName     string          `json:"creator_name,omitempty" validate:"max=100"`
	CreatorAvatar   string          `json:"creator_avatar,omitempty" validate:"omitempty,url"`
	CreatorPosition *geo.Coordinate `json:"creator_position,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
}

// UpdateActivityRequest represents the request to edit an activity
type UpdateActivityRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=100"`
	Mood            string `json:"mood" validate:"required"`
	Emoji           string `json:"emoji,omitempty" validate:"max=16"`
	Avatar          string `json:"avatar,omitempty" validate:"omitempty,url"`
	MaxMembers      int    `json:"max_members" validate:"gte=1,lte=100"`
	MeetingLocation string `json:"meeting_location" validate:"max=200"`
	IsPublic        bool   `json:"is_public"`
}

// JoinActivityRequest carries the joining user's display details. Both are optional.
type JoinActivityRequest struct {
	Name   string `json:"name,omitempty" validate:"max=100"`
	Avatar string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// UpdateAvatarRequest represents the request to change a user's avatar everywhere
type UpdateAvatarRequest struct {
	Avatar string `json:"avatar" validate:"required,url"`
}

// ActivityResponse represents an activity in API responses
type ActivityResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Mood            Mood           `json:"mood"`
	Emoji           string         `json:"emoji"`
	Avatar          string         `json:"avatar,omitempty"`
	Location        geo.Coordinate `json:"location"`
	MeetingLocation string         `json:"meeting_location"`
	Members         []Member       `json:"members"`
	MemberCount     int            `json:"member_count"`
	MaxMembers      int            `json:"max_members"`
	CreatedBy       string         `json:"created_by"`
	IsPublic        bool           `json:"is_public"`
	CreatedAt       string         `json:"created_at"`
	ExpiresAt       string         `json:"expires_at"`
	Expired         bool           `json:"expired"`
	TimeRemaining   string         `json:"time_remaining"`
	ChatID          string         `json:"chat_id"`
}

// ActiveActivityResponse answers which activity a user currently belongs to
type ActiveActivityResponse struct {
	UserID     string `json:"user_id"`
	ActivityID string `json:"activity_id,omitempty"`
	Active     bool   `json:"active"`
}

// CanCreateResponse answers whether a user may create an activity
type CanCreateResponse struct {
	UserID    string `json:"user_id"`
	CanCreate bool   `json:"can_create"`
}

// AvatarUpdateResponse reports how many activities a fan-out touched
type AvatarUpdateResponse struct {
	Updated int `json:"updated"`
}

// ToResponse converts an Activity model to an ActivityResponse DTO
func (a *Activity) ToResponse(now time.Time) *ActivityResponse {
	members := a.Members
	if members == nil {
		members = []Member{}
	}
	return &ActivityResponse{
		ID:              a.ID,
		Name:            a.Name,
		Mood:            a.Mood,
		Emoji:           a.DisplayEmoji(),
		Avatar:          a.Avatar,
		Location:        a.Location,
		MeetingLocation: a.MeetingLocation,
		Members:         members,
		MemberCount:     len(a.Members),
		MaxMembers:      a.MaxMembers,
		CreatedBy:       a.CreatedBy,
		IsPublic:        a.IsPublic,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:       a.ExpiresAt.UTC().Format(time.RFC3339),
		Expired:         a.IsExpired(now),
		TimeRemaining:   FormatTimeRemaining(a.ExpiresAt.Sub(now)),
		ChatID:          a.ChatID,
	}
}

func toResponses(list []*Activity, now time.Time) []*ActivityResponse {
	out := make([]*ActivityResponse, len(list))
	for i, a := range list {
		out[i] = a.ToResponse(now)
	}
	return out
}

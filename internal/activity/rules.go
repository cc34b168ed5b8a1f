package activity

import (
	"errors"
	"time"

	"github.com/fkhayef/meetup/internal/geo"
)

// Common errors
var (
	ErrActivityNotFound     = errors.New("activity not found")
	ErrLimitReached         = errors.New("activity limit reached")
	ErrAlreadyInActivity    = errors.New("already in an activity")
	ErrActivityFull         = errors.New("activity full")
	ErrNotCreator           = errors.New("only the creator can perform this action")
	ErrNotMember            = errors.New("user is not a member of this activity")
	ErrInvalidExpiry        = errors.New("expiry must be in the future and within the allowed horizon")
	ErrTooFar               = errors.New("location is too far from the creator")
	ErrCapacityBelowMembers = errors.New("max members cannot be below the current member count")
	ErrCannotRemoveCreator  = errors.New("the creator cannot be removed from their own activity")
	ErrInvalidMood          = errors.New("invalid mood")
	ErrInvalidActivity      = errors.New("invalid activity")
)

// Reason returns the machine-readable code for a rule violation
func Reason(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrActivityNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrLimitReached):
		return "LIMIT_REACHED"
	case errors.Is(err, ErrAlreadyInActivity):
		return "ALREADY_IN_ACTIVITY"
	case errors.Is(err, ErrActivityFull):
		return "ACTIVITY_FULL"
	case errors.Is(err, ErrNotCreator):
		return "NOT_CREATOR"
	case errors.Is(err, ErrNotMember):
		return "NOT_MEMBER"
	case errors.Is(err, ErrInvalidExpiry):
		return "INVALID_EXPIRY"
	case errors.Is(err, ErrTooFar):
		return "TOO_FAR"
	case errors.Is(err, ErrCapacityBelowMembers):
		return "CAPACITY_BELOW_MEMBERS"
	case errors.Is(err, ErrCannotRemoveCreator):
		return "CANNOT_REMOVE_CREATOR"
	case errors.Is(err, ErrInvalidMood), errors.Is(err, ErrInvalidActivity):
		return "INVALID_ACTIVITY"
	default:
		return "INTERNAL_ERROR"
	}
}

// Rules holds the tunable limits of the membership rules
type Rules struct {
	// DefaultDuration is used when a create request carries no expiry
	DefaultDuration time.Duration
	// MaxHorizon bounds how far in the future an expiry may be
	MaxHorizon time.Duration
	// MaxDistanceKm bounds the distance between creator and activity
	MaxDistanceKm float64
}

// DefaultRules returns the product defaults: 2h, 6h, 30km
func DefaultRules() Rules {
	return Rules{
		DefaultDuration: 2 * time.Hour,
		MaxHorizon:      6 * time.Hour,
		MaxDistanceKm:   30,
	}
}

// CanCreate refuses creation while the user's last created activity is still live.
// A pointer to a deleted or expired activity does not block.
func CanCreate(userID string, ix *Index, now time.Time) error {
	if _, live := ix.Live(ix.CreatedOf[userID], now); live {
		return ErrLimitReached
	}
	return nil
}

// CanJoin decides whether userID may join target.
// alreadyMember is true when the join would be a no-op.
func CanJoin(userID string, target *Activity, ix *Index, now time.Time) (alreadyMember bool, err error) {
	if target.HasMember(userID) {
		return true, nil
	}
	if activeID := ix.ActiveOf[userID]; activeID != target.ID {
		if _, live := ix.Live(activeID, now); live {
			return false, ErrAlreadyInActivity
		}
	}
	if target.IsFull() {
		return false, ErrActivityFull
	}
	return false, nil
}

// CanLeave allows any current member to leave
func CanLeave(userID string, a *Activity) error {
	if !a.HasMember(userID) {
		return ErrNotMember
	}
	return nil
}

// CanStop allows only the creator to stop an activity
func CanStop(userID string, a *Activity) error {
	if a.CreatedBy != userID {
		return ErrNotCreator
	}
	return nil
}

// CanUpdate allows only the creator to edit, and never below the current member count
func CanUpdate(userID string, a *Activity, maxMembers int) error {
	if a.CreatedBy != userID {
		return ErrNotCreator
	}
	if maxMembers < len(a.Members) {
		return ErrCapacityBelowMembers
	}
	return nil
}

// CanRemoveMember allows the creator to remove anyone but themself
func CanRemoveMember(creatorID string, a *Activity, memberID string) error {
	if a.CreatedBy != creatorID {
		return ErrNotCreator
	}
	if memberID == a.CreatedBy {
		return ErrCannotRemoveCreator
	}
	if !a.HasMember(memberID) {
		return ErrNotMember
	}
	return nil
}

// ValidateExpiry requires now < expiresAt < now+MaxHorizon
func (r Rules) ValidateExpiry(expiresAt, now time.Time) error {
	if !expiresAt.After(now) || !expiresAt.Before(now.Add(r.MaxHorizon)) {
		return ErrInvalidExpiry
	}
	return nil
}

// ValidateDistance requires target within MaxDistanceKm of origin.
// An unknown origin skips the check.
func (r Rules) ValidateDistance(origin *geo.Coordinate, target geo.Coordinate) error {
	if origin == nil {
		return nil
	}
	if geo.DistanceKm(*origin, target) > r.MaxDistanceKm {
		return ErrTooFar
	}
	return nil
}

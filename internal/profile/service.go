package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/geo"
)

// Common errors
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
)

// AvatarPropagator rewrites a user's avatar on every activity member row
type AvatarPropagator interface {
	UpdateAvatar(ctx context.Context, userID, avatar string) (int, error)
}

// Config holds the profile defaults
type Config struct {
	AvailabilityWindow      time.Duration
	DefaultMaxAgeDifference int
}

// DefaultConfig returns a 2h availability window and a 5 year age tolerance
func DefaultConfig() Config {
	return Config{
		AvailabilityWindow:      2 * time.Hour,
		DefaultMaxAgeDifference: 5,
	}
}

// UpsertRequest carries the editable profile fields. Nil pointers leave the
// stored value unchanged.
type UpsertRequest struct {
	Name             string
	Avatar           *string
	DateOfBirth      *time.Time
	MaxAgeDifference *int
	Location         *geo.Coordinate
}

// Service handles profile business logic
type Service struct {
	repo       *Repository
	propagator AvatarPropagator
	cfg        Config
	now        func() time.Time
	logger     *slog.Logger

	// writes serialises read-modify-write cycles on profiles
	writes sync.Mutex
}

// NewService creates a new profile service. propagator may be nil when no
// activity store is wired.
func NewService(repo *Repository, propagator AvatarPropagator, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		propagator: propagator,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// Now returns the service's current time
func (s *Service) Now() time.Time {
	return s.now()
}

// Upsert creates the profile or updates its editable fields
func (s *Service) Upsert(ctx context.Context, id string, req UpsertRequest) (*Profile, error) {
	req.Name = strings.TrimSpace(req.Name)
	if id == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: id and name are required", ErrInvalidProfile)
	}
	if req.MaxAgeDifference != nil && *req.MaxAgeDifference < 0 {
		return nil, fmt.Errorf("%w: max age difference must not be negative", ErrInvalidProfile)
	}

	var oldAvatar string
	s.writes.Lock()
	p, err := s.repo.Modify(ctx, id, func(existing *Profile) (*Profile, error) {
		next := &Profile{ID: id, MaxAgeDifference: s.cfg.DefaultMaxAgeDifference}
		if existing != nil {
			next = existing
			oldAvatar = existing.Avatar
		}
		next.Name = req.Name
		if req.Avatar != nil {
			next.Avatar = *req.Avatar
		}
		if req.DateOfBirth != nil {
			next.DateOfBirth = req.DateOfBirth
		}
		if req.MaxAgeDifference != nil {
			next.MaxAgeDifference = *req.MaxAgeDifference
		}
		if req.Location != nil {
			next.Location = req.Location
		}
		next.UpdatedAt = s.now()
		return next, nil
	})
	s.writes.Unlock()
	if err != nil {
		return nil, err
	}

	if p.Avatar != oldAvatar && p.Avatar != "" {
		s.propagate(ctx, p.ID, p.Avatar)
	}
	return p, nil
}

// Get retrieves a profile by id
func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// List returns every profile
func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	return s.repo.List(ctx)
}

// Candidates returns the pool the shuffle draws from
func (s *Service) Candidates(ctx context.Context) ([]*Profile, error) {
	return s.repo.List(ctx)
}

// modifyExisting applies fn to an existing profile
func (s *Service) modifyExisting(ctx context.Context, id string, fn func(p *Profile)) (*Profile, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	return s.repo.Modify(ctx, id, func(existing *Profile) (*Profile, error) {
		if existing == nil {
			return nil, ErrProfileNotFound
		}
		fn(existing)
		existing.UpdatedAt = s.now()
		return existing, nil
	})
}

// SetAvailability opens an availability window with mood, or closes it
// when available is false
func (s *Service) SetAvailability(ctx context.Context, id string, available bool, mood activity.Mood) (*Profile, error) {
	if available && !mood.Valid() {
		return nil, fmt.Errorf("%w: %q", activity.ErrInvalidMood, mood)
	}

	return s.modifyExisting(ctx, id, func(p *Profile) {
		if !available {
			p.AvailableUntil = nil
			return
		}
		until := s.now().Add(s.cfg.AvailabilityWindow)
		p.AvailableUntil = &until
		p.Mood = mood
	})
}

// SetPresence updates the online flag and, when given, the last known position
func (s *Service) SetPresence(ctx context.Context, id string, online bool, location *geo.Coordinate) (*Profile, error) {
	return s.modifyExisting(ctx, id, func(p *Profile) {
		p.IsOnline = online
		if location != nil {
			loc := *location
			p.Location = &loc
		}
	})
}

// SetAvatar stores the new avatar and rewrites it on every activity the
// user appears in. It returns the number of activities touched.
func (s *Service) SetAvatar(ctx context.Context, id, avatar string) (*Profile, int, error) {
	p, err := s.modifyExisting(ctx, id, func(p *Profile) {
		p.Avatar = avatar
	})
	if err != nil {
		return nil, 0, err
	}

	n, err := s.propagateErr(ctx, id, avatar)
	if err != nil {
		return nil, 0, err
	}
	return p, n, nil
}

func (s *Service) propagateErr(ctx context.Context, id, avatar string) (int, error) {
	if s.propagator == nil {
		return 0, nil
	}
	n, err := s.propagator.UpdateAvatar(ctx, id, avatar)
	if err != nil {
		return 0, fmt.Errorf("failed to propagate avatar: %w", err)
	}
	if n > 0 {
		s.logger.Info("avatar propagated", slog.String("user_id", id), slog.Int("activities", n))
	}
	return n, nil
}

// propagate is the best-effort variant used by Upsert
func (s *Service) propagate(ctx context.Context, id, avatar string) {
	if _, err := s.propagateErr(ctx, id, avatar); err != nil {
		s.logger.Warn("avatar propagation failed", slog.String("user_id", id), slog.String("error", err.Error()))
	}
}

package shuffle

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/geo"
	"github.com/fkhayef/meetup/internal/profile"
)

// MeetingPlaceholder is the meeting location of a freshly matched activity
const MeetingPlaceholder = "TBD"

// Profiles is the user directory the shuffle reads and marks available
type Profiles interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
	SetAvailability(ctx context.Context, id string, available bool, mood activity.Mood) (*profile.Profile, error)
	Candidates(ctx context.Context) ([]*profile.Profile, error)
}

// ActivityCreator creates the activity for a confirmed match
type ActivityCreator interface {
	Create(ctx context.Context, req activity.CreateRequest) (*activity.Activity, error)
}

// Config tunes the shuffle sequence
type Config struct {
	Rounds     int
	Duration   time.Duration
	MaxMembers int
}

// DefaultConfig returns 8 picks over 1.5s and a capacity of 5
func DefaultConfig() Config {
	return Config{
		Rounds:     8,
		Duration:   1500 * time.Millisecond,
		MaxMembers: 5,
	}
}

// Interval is how long each pick is presented
func (c Config) Interval() time.Duration {
	return c.Duration / time.Duration(c.Rounds)
}

// Manager runs one matching session per user. Presentation timing is carried
// as data on each pick; the manager never sleeps.
type Manager struct {
	profiles   Profiles
	activities ActivityCreator
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	rand     *rand.Rand
	sessions map[string]*Session
}

// Option configures a Manager
type Option func(*Manager)

// WithRand sets the random source used to draw picks
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rand = r }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a new shuffle manager
func NewManager(profiles Profiles, activities ActivityCreator, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		profiles:   profiles,
		activities: activities,
		cfg:        cfg,
		logger:     slog.Default(),
		now:        time.Now,
		rand:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the user's current session, or an idle one
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s.snapshot()
	}
	return &Session{UserID: userID, State: StateIdle}
}

// Start marks the user available with mood and begins shuffling. An empty
// pool settles immediately with no match.
func (m *Manager) Start(ctx context.Context, userID string, mood activity.Mood) (*Session, error) {
	if !mood.Valid() {
		return nil, activity.ErrInvalidMood
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok && s.State != StateIdle {
		return nil, ErrSessionActive
	}

	self, err := m.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if self.IsAvailable(now) {
		return nil, ErrAlreadyAvailable
	}

	// the pool is loaded first so a failed lookup leaves the user unavailable
	pool, err := m.profiles.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	self, err = m.profiles.SetAvailability(ctx, userID, true, mood)
	if err != nil {
		return nil, err
	}

	s := &Session{
		UserID:    userID,
		Mood:      mood,
		StartedAt: now,
		self:      self,
	}
	m.draw(s, pool, now)
	m.sessions[userID] = s

	m.logger.Info("shuffle started",
		slog.String("user_id", userID),
		slog.String("mood", string(mood)),
		slog.Int("pool_size", s.PoolSize))

	return s.snapshot(), nil
}

// shuffle reloads the pool and draws a fresh sequence. Callers must hold m.mu.
func (m *Manager) shuffle(ctx context.Context, s *Session, now time.Time) error {
	pool, err := m.profiles.Candidates(ctx)
	if err != nil {
		return err
	}
	m.draw(s, pool, now)
	return nil
}

// draw filters pool for s and picks a new sequence. Callers must hold m.mu.
func (m *Manager) draw(s *Session, pool []*profile.Profile, now time.Time) {
	s.pool = Filter(s.self, pool, s.Mood, s.self.MaxAgeDifference, now)
	s.PoolSize = len(s.pool)
	s.Match = nil
	s.final = nil
	poolSize.Observe(float64(s.PoolSize))

	if len(s.pool) == 0 {
		s.State = StateSettled
		s.Outcome = OutcomeNoMatch
		s.Picks = nil
		outcomesTotal.WithLabelValues(string(OutcomeNoMatch)).Inc()
		return
	}

	s.Picks, s.final = samplePicks(m.rand, s.pool, m.cfg.Rounds, m.cfg.Interval(), now)
	s.State = StateShuffling
	s.Outcome = OutcomePending
}

// Settle ends the presentation; the last pick becomes the match
func (m *Manager) Settle(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if s.State != StateShuffling {
		return nil, ErrInvalidTransition
	}

	match := candidateOf(s.final, m.now())
	s.Match = &match
	s.State = StateSettled
	s.Outcome = OutcomeMatched
	outcomesTotal.WithLabelValues(string(OutcomeMatched)).Inc()

	return s.snapshot(), nil
}

// ShuffleAgain draws a fresh sequence from a re-filtered pool
func (m *Manager) ShuffleAgain(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if s.State != StateSettled || s.Outcome == OutcomeCannotCreate {
		return nil, ErrInvalidTransition
	}

	self, err := m.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.self = self
	if err := m.shuffle(ctx, s, m.now()); err != nil {
		return nil, err
	}

	return s.snapshot(), nil
}

// Confirm creates an activity with the user and the match and returns the
// session to idle. A store rejection is terminal: the session stays settled
// with outcome cannot_create until cancelled.
func (m *Manager) Confirm(ctx context.Context, userID string) (*Session, *activity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil, ErrNoSession
	}
	if s.State != StateSettled || s.Outcome != OutcomeMatched || s.final == nil {
		return nil, nil, ErrInvalidTransition
	}

	self := s.self.Member()
	if self.Name == "" {
		self.Name = activity.PlaceholderMemberName
	}
	self.Mood = s.Mood
	self.IsOnline = true
	location := geo.DefaultCenter
	if s.self.Location != nil {
		location = *s.self.Location
	}

	a, err := m.activities.Create(ctx, activity.CreateRequest{
		Name:            s.Mood.Label() + " Meetup",
		Mood:            s.Mood,
		Location:        location,
		MeetingLocation: MeetingPlaceholder,
		MaxMembers:      m.cfg.MaxMembers,
		IsPublic:        true,
		CreatorID:       userID,
		CreatorName:     self.Name,
		CreatorAvatar:   self.Avatar,
		Members:         []activity.Member{self, s.final.Member()},
	})
	if err != nil {
		s.Outcome = OutcomeCannotCreate
		s.Reason = activity.Reason(err)
		outcomesTotal.WithLabelValues(string(OutcomeCannotCreate)).Inc()

		m.logger.Warn("shuffle match could not be created",
			slog.String("user_id", userID),
			slog.String("match_id", s.final.ID),
			slog.String("reason", s.Reason))

		return s.snapshot(), nil, nil
	}

	s.State = StateIdle
	s.Outcome = OutcomeCreated
	s.ActivityID = a.ID
	outcomesTotal.WithLabelValues(string(OutcomeCreated)).Inc()
	delete(m.sessions, userID)

	m.logger.Info("shuffle match created",
		slog.String("user_id", userID),
		slog.String("match_id", s.final.ID),
		slog.String("activity_id", a.ID))

	return s.snapshot(), a, nil
}

// Cancel discards the session from any state without touching activities
func (m *Manager) Cancel(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return &Session{UserID: userID, State: StateIdle}
	}
	delete(m.sessions, userID)

	s.State = StateIdle
	if s.Outcome == OutcomePending || s.Outcome == OutcomeMatched {
		s.Outcome = OutcomeCancelled
		outcomesTotal.WithLabelValues(string(OutcomeCancelled)).Inc()
	}
	return s.snapshot()
}

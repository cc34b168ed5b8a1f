package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/meetup/internal/geo"
)

// Placeholders used when a caller does not supply display details
const (
	PlaceholderMemberName   = "Current User"
	PlaceholderMemberAvatar = "https://images.unsplash.com/photo-1535713875002-d1d0cf377fde?q=80&w=200&auto=format"
	PlaceholderCreatorName  = "Admin"
)

// CreateRequest carries everything needed to create an activity
type CreateRequest struct {
	Name            string
	Mood            Mood
	Emoji           string
	Avatar          string
	Location        geo.Coordinate
	MeetingLocation string
	MaxMembers      int
	IsPublic        bool

	CreatorID     string
	CreatorName   string
	CreatorAvatar string
	// CreatorPosition is the creator's current position, nil when unknown
	CreatorPosition *geo.Coordinate

	// ExpiresAt defaults to now + Rules.DefaultDuration when nil
	ExpiresAt *time.Time

	// Members are extra initial members after the creator
	Members []Member
}

// UpdateRequest replaces the editable fields of an activity
type UpdateRequest struct {
	ID              string
	Name            string
	Mood            Mood
	Emoji           string
	Avatar          string
	MaxMembers      int
	MeetingLocation string
	IsPublic        bool
}

// Store owns the activity collection and the per-user indices.
// Every mutation validates, persists and applies under one lock, so
// concurrent callers never observe or produce a partial change.
type Store struct {
	mu        sync.RWMutex
	repo      Repository
	index     *Index
	rules     Rules
	listeners []Listener
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithRules overrides the membership limits
func WithRules(r Rules) Option {
	return func(s *Store) { s.rules = r }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore loads persisted state from repo and returns a ready store
func NewStore(ctx context.Context, repo Repository, opts ...Option) (*Store, error) {
	s := &Store{
		repo:   repo,
		rules:  DefaultRules(),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	ix, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.index = ix
	storedActivities.Set(float64(len(ix.Activities)))

	s.logger.Info("activity store loaded",
		slog.Int("activities", len(ix.Activities)),
		slog.Int("active_pointers", len(ix.ActiveOf)))

	return s, nil
}

// AddListener registers l for post-commit events
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Rules returns the limits the store enforces
func (s *Store) Rules() Rules {
	return s.rules
}

// commit persists cs and then applies it to the in-memory index.
// Callers must hold s.mu.
func (s *Store) commit(ctx context.Context, cs *Changeset) error {
	if cs.empty() {
		return nil
	}
	if err := s.repo.Commit(ctx, cs); err != nil {
		return err
	}

	for _, a := range cs.Put {
		s.index.Activities[a.ID] = a
	}
	for _, id := range cs.Delete {
		delete(s.index.Activities, id)
	}
	applyPointers(s.index.ActiveOf, cs.Active)
	applyPointers(s.index.CreatedOf, cs.Created)

	storedActivities.Set(float64(len(s.index.Activities)))
	return nil
}

func applyPointers(into, changes map[string]string) {
	for userID, activityID := range changes {
		if activityID == "" {
			delete(into, userID)
			continue
		}
		into[userID] = activityID
	}
}

func (s *Store) listenersSnapshot() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Listener(nil), s.listeners...)
}

// Create validates and inserts a new activity with the creator as first member
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Activity, error) {
	a, err := s.create(ctx, req)
	observe("create", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("activity created",
		slog.String("activity_id", a.ID),
		slog.String("creator_id", a.CreatedBy),
		slog.String("mood", string(a.Mood)))

	for _, l := range s.listenersSnapshot() {
		l.ActivityCreated(ctx, a.Clone())
	}
	return a.Clone(), nil
}

func (s *Store) create(ctx context.Context, req CreateRequest) (*Activity, error) {
	if err := normalizeCreate(&req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if err := CanCreate(req.CreatorID, s.index, now); err != nil {
		return nil, err
	}
	if s.liveElsewhere(req.CreatorID, "", now) {
		return nil, ErrAlreadyInActivity
	}

	expiresAt := now.Add(s.rules.DefaultDuration)
	if req.ExpiresAt != nil {
		if err := s.rules.ValidateExpiry(*req.ExpiresAt, now); err != nil {
			return nil, err
		}
		expiresAt = *req.ExpiresAt
	}
	if err := s.rules.ValidateDistance(req.CreatorPosition, req.Location); err != nil {
		return nil, err
	}

	members, err := s.initialMembers(req, now)
	if err != nil {
		return nil, err
	}

	a := &Activity{
		ID:              s.newID(),
		Name:            req.Name,
		Mood:            req.Mood,
		Emoji:           req.Emoji,
		Avatar:          req.Avatar,
		Location:        req.Location,
		MeetingLocation: req.MeetingLocation,
		Members:         members,
		MaxMembers:      req.MaxMembers,
		CreatedBy:       req.CreatorID,
		IsPublic:        req.IsPublic,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
		ChatID:          "chat_" + s.newID(),
	}

	cs := newChangeset()
	cs.Put = append(cs.Put, a)
	for _, m := range members {
		cs.Active[m.ID] = a.ID
	}
	cs.Created[req.CreatorID] = a.ID

	if err := s.commit(ctx, cs); err != nil {
		return nil, err
	}
	return a, nil
}

func normalizeCreate(req *CreateRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Emoji = strings.TrimSpace(req.Emoji)
	req.MeetingLocation = strings.TrimSpace(req.MeetingLocation)

	if req.CreatorID == "" {
		return fmt.Errorf("%w: creator is required", ErrInvalidActivity)
	}
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidActivity)
	}
	if req.MaxMembers < 1 {
		return fmt.Errorf("%w: max members must be positive", ErrInvalidActivity)
	}
	if req.Mood == "" && req.Emoji != "" {
		req.Mood = MoodFromEmoji(req.Emoji)
	}
	if !req.Mood.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMood, req.Mood)
	}
	return nil
}

// initialMembers puts the creator first and appends the unique extra members.
// Callers must hold s.mu.
func (s *Store) initialMembers(req CreateRequest, now time.Time) ([]Member, error) {
	creator := Member{
		ID:       req.CreatorID,
		Name:     req.CreatorName,
		Avatar:   req.CreatorAvatar,
		Location: req.CreatorPosition,
		Mood:     req.Mood,
		IsOnline: true,
	}
	for _, m := range req.Members {
		if m.ID == req.CreatorID {
			creator = m
			break
		}
	}
	if creator.Name == "" {
		creator.Name = PlaceholderCreatorName
	}
	if creator.Avatar == "" {
		creator.Avatar = PlaceholderMemberAvatar
	}
	if creator.Location == nil {
		loc := req.Location
		creator.Location = &loc
	}
	creator.JoinedAt = now

	members := []Member{creator}
	seen := map[string]bool{creator.ID: true}
	for _, m := range req.Members {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		if s.liveElsewhere(m.ID, "", now) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyInActivity, m.ID)
		}
		if m.Name == "" {
			m.Name = PlaceholderMemberName
		}
		if m.Avatar == "" {
			m.Avatar = PlaceholderMemberAvatar
		}
		m.JoinedAt = now
		members = append(members, m)
		seen[m.ID] = true
	}

	if len(members) > req.MaxMembers {
		return nil, ErrActivityFull
	}
	return members, nil
}

// liveElsewhere reports whether userID's active pointer names a live activity
// other than exceptID that still lists the user as a member.
func (s *Store) liveElsewhere(userID, exceptID string, now time.Time) bool {
	activeID := s.index.ActiveOf[userID]
	if activeID == "" || activeID == exceptID {
		return false
	}
	a, live := s.index.Live(activeID, now)
	return live && a.HasMember(userID)
}

// Join adds userID to the activity. Joining an activity the user already
// belongs to succeeds without changes.
func (s *Store) Join(ctx context.Context, activityID, userID, name, avatar string) (*Activity, error) {
	a, joined, err := s.join(ctx, activityID, userID, name, avatar)
	observe("join", err)
	if err != nil {
		return nil, err
	}

	if joined != nil {
		s.logger.Info("member joined",
			slog.String("activity_id", activityID),
			slog.String("user_id", userID),
			slog.Int("members", len(a.Members)))

		for _, l := range s.listenersSnapshot() {
			l.MemberJoined(ctx, a.Clone(), *joined)
		}
	}
	return a.Clone(), nil
}

func (s *Store) join(ctx context.Context, activityID, userID, name, avatar string) (*Activity, *Member, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: user is required", ErrInvalidActivity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	current, ok := s.index.Live(activityID, now)
	if !ok {
		return nil, nil, ErrActivityNotFound
	}

	alreadyMember, err := CanJoin(userID, current, s.index, now)
	if err != nil {
		return nil, nil, err
	}
	if alreadyMember {
		if s.index.ActiveOf[userID] != activityID {
			cs := newChangeset()
			cs.Active[userID] = activityID
			if err := s.commit(ctx, cs); err != nil {
				return nil, nil, err
			}
		}
		return current, nil, nil
	}

	if name == "" {
		name = PlaceholderMemberName
	}
	if avatar == "" {
		avatar = PlaceholderMemberAvatar
	}
	member := Member{
		ID:       userID,
		Name:     name,
		Avatar:   avatar,
		Mood:     current.Mood,
		IsOnline: true,
		JoinedAt: now,
	}

	next := current.Clone()
	next.Members = append(next.Members, member)

	cs := newChangeset()
	cs.Put = append(cs.Put, next)
	cs.Active[userID] = activityID

	if err := s.commit(ctx, cs); err != nil {
		return nil, nil, err
	}
	return next, &member, nil
}

// Leave removes userID from the activity. The activity itself stays, even
// when it becomes empty. Unknown activities and non-members are no-ops.
func (s *Store) Leave(ctx context.Context, activityID, userID string) error {
	err := s.leave(ctx, activityID, userID)
	observe("leave", err)
	return err
}

func (s *Store) leave(ctx context.Context, activityID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := newChangeset()
	if s.index.ActiveOf[userID] == activityID {
		cs.Active[userID] = ""
	}

	current, ok := s.index.Live(activityID, s.now())
	if ok && CanLeave(userID, current) == nil {
		next := current.Clone()
		i := next.MemberIndex(userID)
		next.Members = append(next.Members[:i], next.Members[i+1:]...)
		cs.Put = append(cs.Put, next)
	}

	if err := s.commit(ctx, cs); err != nil {
		return err
	}
	if len(cs.Put) > 0 {
		s.logger.Info("member left", slog.String("activity_id", activityID), slog.String("user_id", userID))
	}
	return nil
}

// Stop deletes the activity outright. Only the creator may stop it. Every
// user whose active or created pointer names the activity is cleared in the
// same commit.
func (s *Store) Stop(ctx context.Context, activityID, creatorID string) error {
	err := s.stop(ctx, activityID, creatorID)
	observe("stop", err)
	if err == nil {
		s.logger.Info("activity stopped", slog.String("activity_id", activityID), slog.String("creator_id", creatorID))
	}
	return err
}

func (s *Store) stop(ctx context.Context, activityID, creatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.index.Activities[activityID]
	if !ok {
		return nil
	}
	if err := CanStop(creatorID, current); err != nil {
		return err
	}

	cs := newChangeset()
	cs.Delete = append(cs.Delete, activityID)
	for userID, id := range s.index.ActiveOf {
		if id == activityID {
			cs.Active[userID] = ""
		}
	}
	for userID, id := range s.index.CreatedOf {
		if id == activityID {
			cs.Created[userID] = ""
		}
	}

	return s.commit(ctx, cs)
}

// Update replaces the editable fields of a live activity. Creator only.
// An unknown, stopped or expired activity is a no-op: both results are nil.
func (s *Store) Update(ctx context.Context, userID string, req UpdateRequest) (*Activity, error) {
	a, err := s.update(ctx, userID, req)
	observe("update", err)
	if err != nil || a == nil {
		return nil, err
	}

	for _, l := range s.listenersSnapshot() {
		l.ActivityUpdated(ctx, a.Clone())
	}
	return a.Clone(), nil
}

func (s *Store) update(ctx context.Context, userID string, req UpdateRequest) (*Activity, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidActivity)
	}
	if req.MaxMembers < 1 {
		return nil, fmt.Errorf("%w: max members must be positive", ErrInvalidActivity)
	}
	if !req.Mood.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMood, req.Mood)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.index.Live(req.ID, s.now())
	if !ok {
		return nil, nil
	}
	if err := CanUpdate(userID, current, req.MaxMembers); err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Name = req.Name
	next.Mood = req.Mood
	next.Emoji = strings.TrimSpace(req.Emoji)
	next.Avatar = req.Avatar
	next.MaxMembers = req.MaxMembers
	next.MeetingLocation = strings.TrimSpace(req.MeetingLocation)
	next.IsPublic = req.IsPublic

	cs := newChangeset()
	cs.Put = append(cs.Put, next)
	if err := s.commit(ctx, cs); err != nil {
		return nil, err
	}
	return next, nil
}

// RemoveMember lets the creator remove another member
func (s *Store) RemoveMember(ctx context.Context, activityID, creatorID, memberID string) (*Activity, error) {
	a, err := s.removeMember(ctx, activityID, creatorID, memberID)
	observe("remove_member", err)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (s *Store) removeMember(ctx context.Context, activityID, creatorID, memberID string) (*Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.index.Live(activityID, s.now())
	if !ok {
		return nil, ErrActivityNotFound
	}
	if err := CanRemoveMember(creatorID, current, memberID); err != nil {
		return nil, err
	}

	next := current.Clone()
	i := next.MemberIndex(memberID)
	next.Members = append(next.Members[:i], next.Members[i+1:]...)

	cs := newChangeset()
	cs.Put = append(cs.Put, next)
	if s.index.ActiveOf[memberID] == activityID {
		cs.Active[memberID] = ""
	}

	if err := s.commit(ctx, cs); err != nil {
		return nil, err
	}
	return next, nil
}

// UpdateAvatar rewrites the avatar of every member row belonging to userID,
// expired history included, in one commit. It returns the number of
// activities touched.
func (s *Store) UpdateAvatar(ctx context.Context, userID, avatar string) (int, error) {
	n, err := s.updateAvatar(ctx, userID, avatar)
	observe("update_avatar", err)
	return n, err
}

func (s *Store) updateAvatar(ctx context.Context, userID, avatar string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := newChangeset()
	for _, a := range s.index.Activities {
		i := a.MemberIndex(userID)
		if i < 0 || a.Members[i].Avatar == avatar {
			continue
		}
		next := a.Clone()
		next.Members[i].Avatar = avatar
		cs.Put = append(cs.Put, next)
	}

	if err := s.commit(ctx, cs); err != nil {
		return 0, err
	}
	return len(cs.Put), nil
}

// Get returns the activity with id, expired or not
func (s *Store) Get(id string) (*Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.index.Activities[id]
	if !ok {
		return nil, ErrActivityNotFound
	}
	return a.Clone(), nil
}

// ListActive returns unexpired activities, optionally filtered by mood,
// oldest first. An empty mood or MoodAll matches everything.
func (s *Store) ListActive(mood Mood) []*Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	list := make([]*Activity, 0, len(s.index.Activities))
	for _, a := range s.index.Activities {
		if a.IsExpired(now) {
			continue
		}
		if mood != "" && mood != MoodAll && a.Mood != mood {
			continue
		}
		list = append(list, a.Clone())
	}
	sortActivities(list)
	return list
}

// ListMine returns the unexpired activities userID belongs to
func (s *Store) ListMine(userID string) []*Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var list []*Activity
	for _, a := range s.index.Activities {
		if !a.IsExpired(now) && a.HasMember(userID) {
			list = append(list, a.Clone())
		}
	}
	sortActivities(list)
	return list
}

// ListPast returns expired activities userID was a member of, most recently
// ended first
func (s *Store) ListPast(userID string) []*Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var list []*Activity
	for _, a := range s.index.Activities {
		if a.IsExpired(now) && a.HasMember(userID) {
			list = append(list, a.Clone())
		}
	}
	sortByExpiryDesc(list)
	return list
}

// ActiveActivityID returns the live activity userID belongs to. A pointer to
// a stopped, expired or left activity reads as none.
func (s *Store) ActiveActivityID(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.index.ActiveOf[userID]
	a, live := s.index.Live(id, s.now())
	if !live || !a.HasMember(userID) {
		return "", false
	}
	return id, true
}

// CanUserCreate reports whether userID may create a new activity now
func (s *Store) CanUserCreate(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CanCreate(userID, s.index, s.now()) == nil
}

// Now returns the store's current time
func (s *Store) Now() time.Time {
	return s.now()
}

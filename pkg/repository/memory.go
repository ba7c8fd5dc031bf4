package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
)

// Memory implements Repository in process memory. It backs the local demo
// mode of the swipe command and unit tests.
type Memory struct {
	mu           sync.Mutex
	users        map[model.UserID]*model.UserDoc
	interactions []*model.Interaction
	sessions     map[model.SessionID]*model.Session
	behavior     map[model.UserID]map[string]int64
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[model.UserID]*model.UserDoc),
		sessions: make(map[model.SessionID]*model.Session),
		behavior: make(map[model.UserID]map[string]int64),
	}
}

func (r *Memory) getUserLocked(userID model.UserID) (*model.UserDoc, error) {
	doc, ok := r.users[userID]
	if !ok {
		return nil, goerr.Wrap(ErrUserNotFound, "", goerr.V("user_id", userID))
	}
	return doc, nil
}

func (r *Memory) EnsureUser(ctx context.Context, userID model.UserID, name string) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "ensure user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		r.users[userID] = model.NewUserDoc(name, time.Now())
	}
	return nil
}

func (r *Memory) GetUser(ctx context.Context, userID model.UserID) (*model.UserDoc, error) {
	if userID == "" {
		return nil, goerr.Wrap(ErrNoIdentity, "get user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.getUserLocked(userID)
	if err != nil {
		return nil, err
	}
	return copyUserDoc(doc), nil
}

func (r *Memory) AddLikedIdea(ctx context.Context, userID model.UserID, idea *model.Idea) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "add liked idea")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.getUserLocked(userID)
	if err != nil {
		return err
	}

	if doc.IsLiked(idea.Name) {
		return nil
	}

	copied := *idea
	doc.LikedIdeas = append(doc.LikedIdeas, &copied)
	doc.LastActiveAt = time.Now()
	return nil
}

func (r *Memory) RemoveLikedIdea(ctx context.Context, userID model.UserID, name string) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "remove liked idea")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.getUserLocked(userID)
	if err != nil {
		return err
	}

	for i, idea := range doc.LikedIdeas {
		if idea.Name == name {
			doc.LikedIdeas = append(doc.LikedIdeas[:i], doc.LikedIdeas[i+1:]...)
			doc.LastActiveAt = time.Now()
			return nil
		}
	}
	return nil
}

func (r *Memory) UpdatePreferences(ctx context.Context, userID model.UserID, prefs *model.Preferences) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "update preferences")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.getUserLocked(userID)
	if err != nil {
		return err
	}

	copied := *prefs
	copied.LikedCategories = append([]string{}, prefs.LikedCategories...)
	copied.LikedTags = append([]string{}, prefs.LikedTags...)
	copied.PersonalityTraits = append([]string{}, prefs.PersonalityTraits...)
	doc.Preferences = &copied
	doc.LastActiveAt = time.Now()
	return nil
}

func (r *Memory) IncrementSwipeCount(ctx context.Context, userID model.UserID) (int64, error) {
	if userID == "" {
		return 0, goerr.Wrap(ErrNoIdentity, "increment swipe count")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.getUserLocked(userID)
	if err != nil {
		return 0, err
	}

	doc.SwipeCount++
	doc.LastActiveAt = time.Now()
	return doc.SwipeCount, nil
}

func (r *Memory) SetPersonalityUnlocked(ctx context.Context, userID model.UserID, unlocked bool) error {
	return r.mutateUser(userID, func(doc *model.UserDoc) {
		doc.PersonalityUnlocked = unlocked
	})
}

func (r *Memory) SetSeenIdeas(ctx context.Context, userID model.UserID, names []string) error {
	return r.mutateUser(userID, func(doc *model.UserDoc) {
		doc.SeenIdeas = append([]string{}, names...)
	})
}

func (r *Memory) SetInterests(ctx context.Context, userID model.UserID, interests []string) error {
	return r.mutateUser(userID, func(doc *model.UserDoc) {
		doc.Interests = append([]string{}, interests...)
		if doc.Preferences == nil {
			doc.Preferences = model.DefaultPreferences()
		}
		doc.Preferences.LikedCategories = append([]string{}, interests...)
	})
}

func (r *Memory) SetOnboardingCompleted(ctx context.Context, userID model.UserID, completed bool) error {
	return r.mutateUser(userID, func(doc *model.UserDoc) {
		doc.OnboardingCompleted = completed
	})
}

func (r *Memory) SetUserName(ctx context.Context, userID model.UserID, name string) error {
	return r.mutateUser(userID, func(doc *model.UserDoc) {
		doc.Name = name
	})
}

func (r *Memory) mutateUser(userID model.UserID, fn func(doc *model.UserDoc)) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "mutate user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.getUserLocked(userID)
	if err != nil {
		return err
	}

	fn(doc)
	doc.LastActiveAt = time.Now()
	return nil
}

func (r *Memory) ResetUser(ctx context.Context, userID model.UserID) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "reset user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.getUserLocked(userID)
	if err != nil {
		return err
	}

	reset := model.NewUserDoc(doc.Name, time.Now())
	reset.CreatedAt = doc.CreatedAt
	r.users[userID] = reset
	return nil
}

func (r *Memory) PutInteraction(ctx context.Context, entry *model.Interaction) error {
	if entry.UserID == "" {
		return goerr.Wrap(ErrNoIdentity, "put interaction")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	r.interactions = append(r.interactions, &copied)
	return nil
}

func (r *Memory) ListInteractions(ctx context.Context, sessionID model.SessionID, limit int) ([]*model.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entries []*model.Interaction
	for _, entry := range r.interactions {
		if entry.SessionID == sessionID {
			copied := *entry
			entries = append(entries, &copied)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *Memory) PutSession(ctx context.Context, session *model.Session) error {
	if session.UserID == "" {
		return goerr.Wrap(ErrNoIdentity, "put session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.SessionID] = &copied
	return nil
}

func (r *Memory) CloseSession(ctx context.Context, session *model.Session) error {
	if session.UserID == "" {
		return goerr.Wrap(ErrNoIdentity, "close session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.SessionID] = &copied
	return nil
}

// GetSession retrieves a stored session summary (test helper)
func (r *Memory) GetSession(sessionID model.SessionID) *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	copied := *session
	return &copied
}

func (r *Memory) IncrementBehavior(ctx context.Context, userID model.UserID, fields map[string]int64) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "increment behavior")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	counters, ok := r.behavior[userID]
	if !ok {
		counters = make(map[string]int64)
		r.behavior[userID] = counters
	}
	for key, delta := range fields {
		counters[key] += delta
	}
	return nil
}

// Behavior returns a copy of the behavior counters of a user (test helper)
func (r *Memory) Behavior(userID model.UserID) map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	counters := make(map[string]int64, len(r.behavior[userID]))
	for k, v := range r.behavior[userID] {
		counters[k] = v
	}
	return counters
}

func copyUserDoc(doc *model.UserDoc) *model.UserDoc {
	copied := *doc
	copied.LikedIdeas = make([]*model.Idea, len(doc.LikedIdeas))
	for i, idea := range doc.LikedIdeas {
		ideaCopy := *idea
		copied.LikedIdeas[i] = &ideaCopy
	}
	copied.Interests = append([]string{}, doc.Interests...)
	copied.SeenIdeas = append([]string{}, doc.SeenIdeas...)
	if doc.Preferences != nil {
		prefs := *doc.Preferences
		prefs.LikedCategories = append([]string{}, doc.Preferences.LikedCategories...)
		prefs.LikedTags = append([]string{}, doc.Preferences.LikedTags...)
		prefs.PersonalityTraits = append([]string{}, doc.Preferences.PersonalityTraits...)
		copied.Preferences = &prefs
	}
	return &copied
}

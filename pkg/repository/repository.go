package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
)

var (
	// ErrUserNotFound is returned when the per-user document does not exist
	ErrUserNotFound = goerr.New("user not found")

	// ErrNoIdentity is returned by write operations invoked without a signed-in
	// user. Reads degrade to zero values instead; writes must not silently fail.
	ErrNoIdentity = goerr.New("no authenticated user")
)

// Repository is the durable store boundary: a per-user document plus
// append-only interaction and session collections. Implementations provide
// atomic array-union, array-remove and numeric-increment semantics; callers
// must not assume read-modify-write across calls is atomic.
type Repository interface {
	// EnsureUser creates the per-user document with defaults if it is absent
	EnsureUser(ctx context.Context, userID model.UserID, name string) error

	// GetUser retrieves the per-user document
	GetUser(ctx context.Context, userID model.UserID) (*model.UserDoc, error)

	// AddLikedIdea appends the idea to the liked list unless an idea with the
	// same name is already present
	AddLikedIdea(ctx context.Context, userID model.UserID, idea *model.Idea) error

	// RemoveLikedIdea removes the idea with the given name from the liked list
	RemoveLikedIdea(ctx context.Context, userID model.UserID, name string) error

	// UpdatePreferences overwrites the preference profile (last write wins)
	UpdatePreferences(ctx context.Context, userID model.UserID, prefs *model.Preferences) error

	// IncrementSwipeCount atomically increments the swipe counter and returns
	// the updated value
	IncrementSwipeCount(ctx context.Context, userID model.UserID) (int64, error)

	// SetPersonalityUnlocked sets the one-time personality latch
	SetPersonalityUnlocked(ctx context.Context, userID model.UserID, unlocked bool) error

	// SetSeenIdeas overwrites the bounded seen-idea window
	SetSeenIdeas(ctx context.Context, userID model.UserID, names []string) error

	// SetInterests stores onboarding interests and seeds liked categories
	SetInterests(ctx context.Context, userID model.UserID, interests []string) error

	// SetOnboardingCompleted marks onboarding state
	SetOnboardingCompleted(ctx context.Context, userID model.UserID, completed bool) error

	// SetUserName stores the display name
	SetUserName(ctx context.Context, userID model.UserID, name string) error

	// ResetUser restores the per-user document to its initial state
	ResetUser(ctx context.Context, userID model.UserID) error

	// PutInteraction appends one interaction log entry
	PutInteraction(ctx context.Context, entry *model.Interaction) error

	// ListInteractions retrieves interaction entries of a session ordered by
	// timestamp
	ListInteractions(ctx context.Context, sessionID model.SessionID, limit int) ([]*model.Interaction, error)

	// PutSession saves a session summary
	PutSession(ctx context.Context, session *model.Session) error

	// CloseSession writes the end time, duration and final counters
	CloseSession(ctx context.Context, session *model.Session) error

	// IncrementBehavior applies atomic increments to the per-user rolling
	// behavior counters. Keys may address nested buckets with dot notation
	// (e.g. "timeOfDayUsage.18").
	IncrementBehavior(ctx context.Context, userID model.UserID, fields map[string]int64) error
}

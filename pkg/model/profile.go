package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidEngagementPattern = goerr.New("invalid engagement pattern")
)

// UserID identifies an authenticated user. It comes from the identity
// boundary and is opaque to this system.
type UserID string

type EngagementPattern string

const (
	EngagementQuick      EngagementPattern = "quick"
	EngagementThoughtful EngagementPattern = "thoughtful"
	EngagementCreative   EngagementPattern = "creative"
)

// Validate checks if the engagement pattern is valid
func (p EngagementPattern) Validate() error {
	switch p {
	case EngagementQuick, EngagementThoughtful, EngagementCreative:
		return nil
	default:
		return goerr.Wrap(ErrInvalidEngagementPattern, "", goerr.V("pattern", p))
	}
}

const (
	TraitHighStandards = "high-standards"
	TraitTechSavvy     = "tech-savvy"
)

// Preferences is the durable, one-way-growing summary of a user's likes.
// Categories, tags and traits are only ever added, never removed, even when
// the like that introduced them is undone.
type Preferences struct {
	LikedCategories   []string          `json:"likedCategories" firestore:"likedCategories"`
	LikedTags         []string          `json:"likedTags" firestore:"likedTags"`
	PersonalityTraits []string          `json:"personalityTraits" firestore:"personalityTraits"`
	EngagementPattern EngagementPattern `json:"engagementPattern" firestore:"engagementPattern"`
}

// DefaultPreferences returns the profile assigned on first authenticated use
func DefaultPreferences() *Preferences {
	return &Preferences{
		LikedCategories:   []string{},
		LikedTags:         []string{},
		PersonalityTraits: []string{},
		EngagementPattern: EngagementThoughtful,
	}
}

// HasTrait reports whether the profile carries the given trait
func (p *Preferences) HasTrait(trait string) bool {
	for _, t := range p.PersonalityTraits {
		if t == trait {
			return true
		}
	}
	return false
}

// Personality is the derived gamification label for a user
type Personality string

const (
	PersonalityTechVisionary    Personality = "Tech Visionary"
	PersonalityCommunityBuilder Personality = "Community Builder"
	PersonalityAIPioneer        Personality = "AI Pioneer"
	PersonalityIdeaCollector    Personality = "Idea Collector"
	PersonalityRouletteMaster   Personality = "Roulette Master"
	PersonalityEmergingFounder  Personality = "Emerging Founder"
)

// SeenIdeasCap bounds the persisted recent-history of idea names. The window
// slides: once full, the oldest name is dropped on each insert.
const SeenIdeasCap = 200

// UserDoc is the per-user document in the durable store
type UserDoc struct {
	LikedIdeas          []*Idea      `firestore:"likedIdeas"`
	Preferences         *Preferences `firestore:"preferences"`
	SwipeCount          int64        `firestore:"swipeCount"`
	PersonalityUnlocked bool         `firestore:"personalityUnlocked"`
	OnboardingCompleted bool         `firestore:"onboardingCompleted"`
	Interests           []string     `firestore:"interests"`
	Name                string       `firestore:"name"`
	SeenIdeas           []string     `firestore:"seenIdeas"`
	CreatedAt           time.Time    `firestore:"createdAt"`
	LastActiveAt        time.Time    `firestore:"lastActiveAt"`
}

// NewUserDoc returns the initial document written on first sign-in
func NewUserDoc(name string, now time.Time) *UserDoc {
	return &UserDoc{
		LikedIdeas:   []*Idea{},
		Preferences:  DefaultPreferences(),
		Interests:    []string{},
		Name:         name,
		SeenIdeas:    []string{},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// IsLiked reports whether the named idea is in the durable liked list
func (d *UserDoc) IsLiked(name string) bool {
	for _, idea := range d.LikedIdeas {
		if idea.Name == name {
			return true
		}
	}
	return false
}

// HasSeen reports whether the named idea is in the bounded seen window
func (d *UserDoc) HasSeen(name string) bool {
	for _, seen := range d.SeenIdeas {
		if seen == name {
			return true
		}
	}
	return false
}

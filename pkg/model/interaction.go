package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidAction = goerr.New("invalid action")
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type Action string

const (
	ActionView   Action = "view"
	ActionLike   Action = "like"
	ActionUnlike Action = "unlike"
	ActionRemix  Action = "remix"
	ActionShare  Action = "share"
	ActionExpand Action = "expand"
)

// Validate checks if the action is valid
func (a Action) Validate() error {
	switch a {
	case ActionView, ActionLike, ActionUnlike, ActionRemix, ActionShare, ActionExpand:
		return nil
	default:
		return goerr.Wrap(ErrInvalidAction, "", goerr.V("action", a))
	}
}

type SwipeDirection string

const (
	SwipeUp   SwipeDirection = "up"
	SwipeDown SwipeDirection = "down"
)

// Interaction is one append-only audit record of a user action. Entries are
// written in issue order but may land out of order; the Timestamp field is
// the authoritative ordering for consumers.
type Interaction struct {
	UserID       UserID         `firestore:"userId" bigquery:"user_id" json:"userId"`
	SessionID    SessionID      `firestore:"sessionId" bigquery:"session_id" json:"sessionId"`
	IdeaName     string         `firestore:"ideaName" bigquery:"idea_name" json:"ideaName"`
	IdeaCategory string         `firestore:"ideaCategory" bigquery:"idea_category" json:"ideaCategory"`
	IdeaRating   float64        `firestore:"ideaRating" bigquery:"idea_rating" json:"ideaRating"`
	Action       Action         `firestore:"action" bigquery:"action" json:"action"`
	Timestamp    time.Time      `firestore:"timestamp" bigquery:"timestamp" json:"timestamp"`
	TimeSpentSec int64          `firestore:"timeSpentSec,omitempty" bigquery:"time_spent_sec" json:"timeSpentSec,omitempty"`
	Swipe        SwipeDirection `firestore:"swipeDirection,omitempty" bigquery:"swipe_direction" json:"swipeDirection,omitempty"`
}

// ClientInfo carries device/browser/location metadata resolved once at
// session start. All values are opaque strings sourced externally.
type ClientInfo struct {
	Device           string `firestore:"device" json:"device"`
	Browser          string `firestore:"browser" json:"browser"`
	OS               string `firestore:"os" json:"os"`
	ScreenResolution string `firestore:"screenResolution" json:"screenResolution"`
	Country          string `firestore:"country,omitempty" json:"country,omitempty"`
	Region           string `firestore:"region,omitempty" json:"region,omitempty"`
	City             string `firestore:"city,omitempty" json:"city,omitempty"`
	Referrer         string `firestore:"referrer,omitempty" json:"referrer,omitempty"`
}

// Session summarizes one sign-in to sign-out span
type Session struct {
	UserID      UserID     `firestore:"userId" json:"userId"`
	SessionID   SessionID  `firestore:"sessionId" json:"sessionId"`
	StartTime   time.Time  `firestore:"startTime" json:"startTime"`
	EndTime     *time.Time `firestore:"endTime,omitempty" json:"endTime,omitempty"`
	DurationSec int64      `firestore:"durationSec" json:"durationSec"`

	ActionsCount int64 `firestore:"actionsCount" json:"actionsCount"`
	IdeasViewed  int64 `firestore:"ideasViewed" json:"ideasViewed"`
	IdeasLiked   int64 `firestore:"ideasLiked" json:"ideasLiked"`
	IdeasRemixed int64 `firestore:"ideasRemixed" json:"ideasRemixed"`
	IdeasShared  int64 `firestore:"ideasShared" json:"ideasShared"`
	SwipeCount   int64 `firestore:"swipeCount" json:"swipeCount"`

	Client ClientInfo `firestore:"client" json:"client"`
}

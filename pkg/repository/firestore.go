package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionUsers        = "users"
	collectionInteractions = "ideaInteractions"
	collectionSessions     = "userSessions"
	collectionBehavior     = "userBehavior"
)

// Firestore implements Repository on Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) userDoc(userID model.UserID) *firestore.DocumentRef {
	return r.client.Collection(collectionUsers).Doc(string(userID))
}

func (r *Firestore) EnsureUser(ctx context.Context, userID model.UserID, name string) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "ensure user")
	}

	_, err := r.userDoc(userID).Get(ctx)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to get user document", goerr.V("user_id", userID))
	}

	doc := model.NewUserDoc(name, time.Now())
	if _, err := r.userDoc(userID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to create user document", goerr.V("user_id", userID))
	}

	return nil
}

func (r *Firestore) GetUser(ctx context.Context, userID model.UserID) (*model.UserDoc, error) {
	if userID == "" {
		return nil, goerr.Wrap(ErrNoIdentity, "get user")
	}

	snap, err := r.userDoc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrUserNotFound, "", goerr.V("user_id", userID))
		}
		return nil, goerr.Wrap(err, "failed to get user document", goerr.V("user_id", userID))
	}

	var doc model.UserDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user document", goerr.V("user_id", userID))
	}

	return &doc, nil
}

func (r *Firestore) AddLikedIdea(ctx context.Context, userID model.UserID, idea *model.Idea) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "add liked idea")
	}

	// Best-effort convenience check; ArrayUnion below dedups exact values, but
	// two records with the same name and different fields would both land
	// without this.
	doc, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if doc.IsLiked(idea.Name) {
		return nil
	}

	_, err = r.userDoc(userID).Update(ctx, []firestore.Update{
		{Path: "likedIdeas", Value: firestore.ArrayUnion(idea)},
		{Path: "lastActiveAt", Value: time.Now()},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to add liked idea",
			goerr.V("user_id", userID), goerr.V("idea", idea.Name))
	}

	return nil
}

func (r *Firestore) RemoveLikedIdea(ctx context.Context, userID model.UserID, name string) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "remove liked idea")
	}

	// ArrayRemove matches whole values, so look up the stored record first
	doc, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	var target *model.Idea
	for _, idea := range doc.LikedIdeas {
		if idea.Name == name {
			target = idea
			break
		}
	}
	if target == nil {
		return nil
	}

	_, err = r.userDoc(userID).Update(ctx, []firestore.Update{
		{Path: "likedIdeas", Value: firestore.ArrayRemove(target)},
		{Path: "lastActiveAt", Value: time.Now()},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to remove liked idea",
			goerr.V("user_id", userID), goerr.V("idea", name))
	}

	return nil
}

func (r *Firestore) UpdatePreferences(ctx context.Context, userID model.UserID, prefs *model.Preferences) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "update preferences")
	}

	_, err := r.userDoc(userID).Update(ctx, []firestore.Update{
		{Path: "preferences", Value: prefs},
		{Path: "lastActiveAt", Value: time.Now()},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update preferences", goerr.V("user_id", userID))
	}

	return nil
}

func (r *Firestore) IncrementSwipeCount(ctx context.Context, userID model.UserID) (int64, error) {
	if userID == "" {
		return 0, goerr.Wrap(ErrNoIdentity, "increment swipe count")
	}

	_, err := r.userDoc(userID).Update(ctx, []firestore.Update{
		{Path: "swipeCount", Value: firestore.Increment(1)},
		{Path: "lastActiveAt", Value: time.Now()},
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to increment swipe count", goerr.V("user_id", userID))
	}

	doc, err := r.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	return doc.SwipeCount, nil
}

func (r *Firestore) SetPersonalityUnlocked(ctx context.Context, userID model.UserID, unlocked bool) error {
	return r.setField(ctx, userID, "personalityUnlocked", unlocked)
}

func (r *Firestore) SetSeenIdeas(ctx context.Context, userID model.UserID, names []string) error {
	return r.setField(ctx, userID, "seenIdeas", names)
}

func (r *Firestore) SetOnboardingCompleted(ctx context.Context, userID model.UserID, completed bool) error {
	return r.setField(ctx, userID, "onboardingCompleted", completed)
}

func (r *Firestore) SetUserName(ctx context.Context, userID model.UserID, name string) error {
	return r.setField(ctx, userID, "name", name)
}

func (r *Firestore) setField(ctx context.Context, userID model.UserID, path string, value any) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "set field", goerr.V("path", path))
	}

	_, err := r.userDoc(userID).Update(ctx, []firestore.Update{
		{Path: path, Value: value},
		{Path: "lastActiveAt", Value: time.Now()},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update user field",
			goerr.V("user_id", userID), goerr.V("path", path))
	}

	return nil
}

func (r *Firestore) SetInterests(ctx context.Context, userID model.UserID, interests []string) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "set interests")
	}

	doc, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	prefs := doc.Preferences
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}
	prefs.LikedCategories = interests

	_, err = r.userDoc(userID).Update(ctx, []firestore.Update{
		{Path: "interests", Value: interests},
		{Path: "preferences", Value: prefs},
		{Path: "lastActiveAt", Value: time.Now()},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to set interests", goerr.V("user_id", userID))
	}

	return nil
}

func (r *Firestore) ResetUser(ctx context.Context, userID model.UserID) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "reset user")
	}

	doc, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	reset := model.NewUserDoc(doc.Name, time.Now())
	reset.CreatedAt = doc.CreatedAt

	if _, err := r.userDoc(userID).Set(ctx, reset); err != nil {
		return goerr.Wrap(err, "failed to reset user document", goerr.V("user_id", userID))
	}

	return nil
}

func (r *Firestore) PutInteraction(ctx context.Context, entry *model.Interaction) error {
	if entry.UserID == "" {
		return goerr.Wrap(ErrNoIdentity, "put interaction")
	}

	_, _, err := r.client.Collection(collectionInteractions).Add(ctx, entry)
	if err != nil {
		return goerr.Wrap(err, "failed to put interaction",
			goerr.V("user_id", entry.UserID), goerr.V("action", entry.Action))
	}

	return nil
}

func (r *Firestore) ListInteractions(ctx context.Context, sessionID model.SessionID, limit int) ([]*model.Interaction, error) {
	query := r.client.Collection(collectionInteractions).
		Where("sessionId", "==", string(sessionID)).
		OrderBy("timestamp", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []*model.Interaction
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate interactions",
				goerr.V("session_id", sessionID))
		}

		var entry model.Interaction
		if err := snap.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode interaction")
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

func (r *Firestore) PutSession(ctx context.Context, session *model.Session) error {
	if session.UserID == "" {
		return goerr.Wrap(ErrNoIdentity, "put session")
	}

	_, err := r.client.Collection(collectionSessions).Doc(string(session.SessionID)).Set(ctx, session)
	if err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.V("session_id", session.SessionID))
	}

	return nil
}

func (r *Firestore) CloseSession(ctx context.Context, session *model.Session) error {
	if session.UserID == "" {
		return goerr.Wrap(ErrNoIdentity, "close session")
	}

	_, err := r.client.Collection(collectionSessions).Doc(string(session.SessionID)).Update(ctx, []firestore.Update{
		{Path: "endTime", Value: session.EndTime},
		{Path: "durationSec", Value: session.DurationSec},
		{Path: "actionsCount", Value: session.ActionsCount},
		{Path: "ideasViewed", Value: session.IdeasViewed},
		{Path: "ideasLiked", Value: session.IdeasLiked},
		{Path: "ideasRemixed", Value: session.IdeasRemixed},
		{Path: "ideasShared", Value: session.IdeasShared},
		{Path: "swipeCount", Value: session.SwipeCount},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to close session", goerr.V("session_id", session.SessionID))
	}

	return nil
}

func (r *Firestore) IncrementBehavior(ctx context.Context, userID model.UserID, fields map[string]int64) error {
	if userID == "" {
		return goerr.Wrap(ErrNoIdentity, "increment behavior")
	}
	if len(fields) == 0 {
		return nil
	}

	// Set with merge so the behavior document is created on first use. Dotted
	// keys become nested bucket fields.
	data := map[string]any{
		"lastActiveDate": time.Now(),
	}
	for key, delta := range fields {
		nested := data
		parts := splitFieldPath(key)
		for _, part := range parts[:len(parts)-1] {
			child, ok := nested[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				nested[part] = child
			}
			nested = child
		}
		nested[parts[len(parts)-1]] = firestore.Increment(delta)
	}

	_, err := r.client.Collection(collectionBehavior).Doc(string(userID)).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return goerr.Wrap(err, "failed to increment behavior counters", goerr.V("user_id", userID))
	}

	return nil
}

func splitFieldPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}

package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/adapter"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
)

// endDeadline bounds how long session teardown may block the caller
const endDeadline = 3 * time.Second

// Recorder owns one sign-in span: the session summary document, the bounded
// seen-idea window, and the append-only interaction log. Entries are written
// through the repository and optionally streamed to the analytics sink.
type Recorder struct {
	repo    repository.Repository
	sink    adapter.BigQuery
	archive adapter.Storage

	mu         sync.Mutex
	userID     model.UserID
	session    *model.Session
	seen       []string
	seenSet    map[string]struct{}
	lastViewAt time.Time
}

// RecorderOption is a functional option for Recorder
type RecorderOption func(*Recorder)

// WithSink streams interaction entries to an analytics sink in addition to
// the repository. Sink failures are logged, never surfaced.
func WithSink(sink adapter.BigQuery) RecorderOption {
	return func(x *Recorder) {
		x.sink = sink
	}
}

// WithArchive writes an export of each closed session to the archive bucket.
// Export failures are logged, never surfaced.
func WithArchive(archive adapter.Storage) RecorderOption {
	return func(x *Recorder) {
		x.archive = archive
	}
}

func NewRecorder(repo repository.Repository, opts ...RecorderOption) *Recorder {
	x := &Recorder{
		repo:    repo,
		seenSet: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Start opens a session: it seeds the seen window from the user document,
// writes the session summary, and bumps the per-user session counters with
// the time-of-day and day-of-week buckets.
func (x *Recorder) Start(ctx context.Context, userID model.UserID, client model.ClientInfo) error {
	now := time.Now()

	doc, err := x.repo.GetUser(ctx, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to load user for session start", goerr.V("user", userID))
	}

	x.mu.Lock()
	x.userID = userID
	x.session = &model.Session{
		UserID:    userID,
		SessionID: model.NewSessionID(),
		StartTime: now,
		Client:    client,
	}
	x.seen = append([]string{}, doc.SeenIdeas...)
	x.seenSet = make(map[string]struct{}, len(x.seen))
	for _, name := range x.seen {
		x.seenSet[name] = struct{}{}
	}
	x.lastViewAt = now
	session := *x.session
	x.mu.Unlock()

	if err := x.repo.PutSession(ctx, &session); err != nil {
		return goerr.Wrap(err, "failed to save session", goerr.V("session", session.SessionID))
	}

	fields := map[string]int64{
		"totalSessions": 1,
		"timeOfDayUsage." + strconv.Itoa(now.Hour()): 1,
		"dayOfWeekUsage." + now.Weekday().String():   1,
	}
	if err := x.repo.IncrementBehavior(ctx, userID, fields); err != nil {
		logging.From(ctx).Warn("failed to bump session behavior counters", "error", err)
	}

	return nil
}

// SessionID returns the identifier of the open session, or "" before Start
func (x *Recorder) SessionID() model.SessionID {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.session == nil {
		return ""
	}
	return x.session.SessionID
}

// Seen returns a copy of the current seen-idea window, oldest first
func (x *Recorder) Seen() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string{}, x.seen...)
}

// RecordView logs that an idea card became the current one. A given name is
// recorded at most once while it stays inside the seen window; the window is
// capped and drops its oldest entry on overflow. The entry carries the time
// spent on the previous card.
func (x *Recorder) RecordView(ctx context.Context, idea *model.Idea, direction model.SwipeDirection) error {
	now := time.Now()

	x.mu.Lock()
	if x.session == nil {
		x.mu.Unlock()
		return goerr.New("session not started")
	}
	if _, ok := x.seenSet[idea.Name]; ok {
		x.mu.Unlock()
		return nil
	}

	spent := int64(now.Sub(x.lastViewAt).Seconds())
	x.lastViewAt = now

	x.seen = append(x.seen, idea.Name)
	x.seenSet[idea.Name] = struct{}{}
	for len(x.seen) > model.SeenIdeasCap {
		delete(x.seenSet, x.seen[0])
		x.seen = x.seen[1:]
	}
	seen := append([]string{}, x.seen...)

	x.session.ActionsCount++
	x.session.IdeasViewed++
	x.session.SwipeCount++

	entry := x.newEntryLocked(idea, model.ActionView, now)
	entry.TimeSpentSec = spent
	entry.Swipe = direction
	userID := x.userID
	x.mu.Unlock()

	if err := x.repo.SetSeenIdeas(ctx, userID, seen); err != nil {
		logging.From(ctx).Warn("failed to persist seen window", "error", err)
	}

	if err := x.putEntry(ctx, entry); err != nil {
		return err
	}

	fields := map[string]int64{
		"totalIdeasViewed": 1,
		"totalSwipes":      1,
	}
	if err := x.repo.IncrementBehavior(ctx, userID, fields); err != nil {
		logging.From(ctx).Warn("failed to bump view behavior counters", "error", err)
	}

	return nil
}

// RecordAction logs a non-view action. Unlike views there is no dedup; every
// like, unlike, remix, share and expand appends an entry.
func (x *Recorder) RecordAction(ctx context.Context, idea *model.Idea, action model.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	if x.session == nil {
		x.mu.Unlock()
		return goerr.New("session not started")
	}

	x.session.ActionsCount++
	switch action {
	case model.ActionLike:
		x.session.IdeasLiked++
	case model.ActionUnlike:
		if x.session.IdeasLiked > 0 {
			x.session.IdeasLiked--
		}
	case model.ActionRemix:
		x.session.IdeasRemixed++
	case model.ActionShare:
		x.session.IdeasShared++
	}

	entry := x.newEntryLocked(idea, action, time.Now())
	userID := x.userID
	x.mu.Unlock()

	if err := x.putEntry(ctx, entry); err != nil {
		return err
	}

	var fields map[string]int64
	switch action {
	case model.ActionLike:
		fields = map[string]int64{"totalIdeasLiked": 1}
	case model.ActionRemix:
		fields = map[string]int64{"totalIdeasRemixed": 1}
	case model.ActionShare:
		fields = map[string]int64{"totalIdeasShared": 1}
	}
	if fields != nil {
		if err := x.repo.IncrementBehavior(ctx, userID, fields); err != nil {
			logging.From(ctx).Warn("failed to bump action behavior counters", "error", err)
		}
	}

	return nil
}

// End closes the session: it stamps the end time, computes the duration and
// writes the final counters. Best effort with its own short deadline so
// teardown paths (signal handlers, beacon endpoints) never hang.
func (x *Recorder) End(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endDeadline)
	defer cancel()

	x.mu.Lock()
	if x.session == nil {
		x.mu.Unlock()
		return nil
	}

	now := time.Now()
	x.session.EndTime = &now
	x.session.DurationSec = int64(now.Sub(x.session.StartTime).Seconds())
	session := *x.session
	x.session = nil
	x.mu.Unlock()

	if err := x.repo.CloseSession(ctx, &session); err != nil {
		return goerr.Wrap(err, "failed to close session", goerr.V("session", session.SessionID))
	}

	if x.archive != nil {
		if err := x.export(ctx, &session); err != nil {
			logging.From(ctx).Warn("failed to archive session export", "session", session.SessionID, "error", err)
		}
	}
	return nil
}

// Export is the archived form of a closed session: the summary plus its
// interaction entries, stored as one JSON object for offline inspection.
type Export struct {
	Session      model.Session        `json:"session"`
	Interactions []*model.Interaction `json:"interactions"`
}

// ExportKey returns the archive object name of a session export
func ExportKey(id model.SessionID) string {
	return "sessions/" + string(id) + ".json"
}

// LoadExport reads an archived session export back from the bucket
func LoadExport(ctx context.Context, archive adapter.Storage, id model.SessionID) (*Export, error) {
	r, err := archive.Get(ctx, ExportKey(id))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open session export", goerr.V("session", id))
	}
	defer r.Close()

	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, goerr.Wrap(err, "failed to decode session export", goerr.V("session", id))
	}
	return &export, nil
}

func (x *Recorder) export(ctx context.Context, session *model.Session) error {
	entries, err := x.repo.ListInteractions(ctx, session.SessionID, 0)
	if err != nil {
		return goerr.Wrap(err, "failed to list interactions for export")
	}

	w, err := x.archive.Put(ctx, ExportKey(session.SessionID))
	if err != nil {
		return goerr.Wrap(err, "failed to open export object")
	}
	if err := json.NewEncoder(w).Encode(&Export{Session: *session, Interactions: entries}); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to encode session export")
	}
	return w.Close()
}

func (x *Recorder) newEntryLocked(idea *model.Idea, action model.Action, now time.Time) *model.Interaction {
	return &model.Interaction{
		UserID:       x.userID,
		SessionID:    x.session.SessionID,
		IdeaName:     idea.Name,
		IdeaCategory: idea.Category,
		IdeaRating:   idea.Rating,
		Action:       action,
		Timestamp:    now,
	}
}

func (x *Recorder) putEntry(ctx context.Context, entry *model.Interaction) error {
	if err := x.repo.PutInteraction(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to append interaction",
			goerr.V("idea", entry.IdeaName), goerr.V("action", entry.Action))
	}

	if x.sink != nil {
		if err := x.sink.InsertInteractions(ctx, []*model.Interaction{entry}); err != nil {
			logging.From(ctx).Warn("failed to stream interaction to sink", "error", err)
		}
	}
	return nil
}

package feed

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/service/generator"
	"github.com/m-mizutani/idearoulette/pkg/usecase/profile"
	"github.com/m-mizutani/idearoulette/pkg/usecase/session"
	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
)

var (
	ErrFeedEmpty = goerr.New("feed is empty")

	// ErrRemixInFlight is returned when a remix of the same card is already
	// running; the overlapping request is dropped, not queued.
	ErrRemixInFlight = goerr.New("remix already in flight")
)

// Feed owns the in-memory card deck of one signed-in user: the idea slice,
// the cursor, and the optimistic like state. All cursor and deck mutation
// happens under one mutex; remote writes run in background goroutines tracked
// by a WaitGroup so teardown can drain them via Flush.
type Feed struct {
	repo   repository.Repository
	gen    *generator.Service
	agg    *profile.Aggregator
	rec    *session.Recorder
	notify func(msg string)

	threshold    int
	batchSize    int
	initialBatch int

	mu        sync.Mutex
	wg        sync.WaitGroup
	userID    model.UserID
	ideas     []*model.Idea
	cursor    int
	direction model.SwipeDirection
	liked     map[string]bool
	remixing  map[string]bool
	fetching  bool
}

// Option is a functional option for Feed
type Option func(*Feed)

// WithPrefetchThreshold sets how few remaining cards trigger a prefetch
func WithPrefetchThreshold(threshold int) Option {
	return func(x *Feed) {
		x.threshold = threshold
	}
}

// WithBatchSize sets how many ideas a prefetch requests
func WithBatchSize(size int) Option {
	return func(x *Feed) {
		x.batchSize = size
	}
}

// WithInitialBatch sets how many ideas the initial load requests
func WithInitialBatch(size int) Option {
	return func(x *Feed) {
		x.initialBatch = size
	}
}

// WithNotify installs the user-facing notice surface. Background failures
// (durable like write, prefetch) report through it instead of returning.
func WithNotify(notify func(msg string)) Option {
	return func(x *Feed) {
		x.notify = notify
	}
}

func New(repo repository.Repository, gen *generator.Service, agg *profile.Aggregator, rec *session.Recorder, userID model.UserID, opts ...Option) *Feed {
	x := &Feed{
		repo:         repo,
		gen:          gen,
		agg:          agg,
		rec:          rec,
		userID:       userID,
		threshold:    5,
		batchSize:    15,
		initialBatch: 30,
		direction:    model.SwipeUp,
		liked:        map[string]bool{},
		remixing:     map[string]bool{},
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.notify == nil {
		x.notify = func(msg string) {
			logging.Default().Info("feed notice", "message", msg)
		}
	}
	return x
}

// Load fills the deck for a fresh session. Generation failure degrades to the
// built-in fallback set so the feed always comes up navigable. The first card
// is recorded as viewed.
func (x *Feed) Load(ctx context.Context) error {
	doc, err := x.repo.GetUser(ctx, x.userID)
	if err != nil {
		return goerr.Wrap(err, "failed to load user", goerr.V("user", x.userID))
	}

	ideas := x.gen.GenerateOrFallback(ctx, doc.Preferences, x.initialBatch, x.rec.Seen())
	if len(ideas) == 0 {
		return goerr.Wrap(ErrFeedEmpty, "no ideas available")
	}

	x.mu.Lock()
	x.ideas = ideas
	x.cursor = 0
	for _, idea := range doc.LikedIdeas {
		x.liked[idea.Name] = true
	}
	current := x.ideas[0]
	x.mu.Unlock()

	x.recordViewAsync(ctx, current, model.SwipeUp)
	return nil
}

// Current returns the card under the cursor
func (x *Feed) Current() *model.Idea {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.ideas) == 0 {
		return nil
	}
	return x.ideas[x.cursor]
}

// Cursor returns the current position
func (x *Feed) Cursor() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cursor
}

// Len returns the number of cards in the deck
func (x *Feed) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.ideas)
}

// Ideas returns a snapshot of the deck
func (x *Feed) Ideas() []*model.Idea {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*model.Idea{}, x.ideas...)
}

// IsLiked reports the optimistic like state of the named idea
func (x *Feed) IsLiked(name string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.liked[name]
}

// Advance moves the cursor forward one card. At the tail it is a no-op. The
// new card is recorded as viewed and the swipe counter is bumped, both in the
// background; the prefetch predicate is re-evaluated afterwards.
func (x *Feed) Advance(ctx context.Context) bool {
	x.mu.Lock()
	if x.cursor+1 >= len(x.ideas) {
		x.mu.Unlock()
		return false
	}
	x.cursor++
	x.direction = model.SwipeUp
	current := x.ideas[x.cursor]
	x.maybePrefetchLocked(ctx)
	x.mu.Unlock()

	x.recordViewAsync(ctx, current, model.SwipeUp)

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		bg := context.WithoutCancel(ctx)
		total, err := x.repo.IncrementSwipeCount(bg, x.userID)
		if err != nil {
			logging.From(ctx).Warn("failed to bump swipe count", "error", err)
			return
		}
		if err := x.agg.NoteSwipe(bg, x.userID, total); err != nil {
			logging.From(ctx).Warn("failed to check personality unlock", "error", err)
		}
	}()

	return true
}

// Retreat moves the cursor back one card. Viewing backwards has no remote
// side effects.
func (x *Feed) Retreat(ctx context.Context) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cursor == 0 {
		return false
	}
	x.cursor--
	x.direction = model.SwipeDown
	x.maybePrefetchLocked(ctx)
	return true
}

// LikeCurrent toggles the like state of the current card. The local state
// flips immediately; the durable write runs in the background and rolls the
// local state back with a notice if it fails. A successful like feeds the
// preference aggregator.
func (x *Feed) LikeCurrent(ctx context.Context) (liked bool, err error) {
	x.mu.Lock()
	if len(x.ideas) == 0 {
		x.mu.Unlock()
		return false, goerr.Wrap(ErrFeedEmpty, "nothing to like")
	}
	idea := x.ideas[x.cursor]
	liked = !x.liked[idea.Name]
	x.liked[idea.Name] = liked
	x.mu.Unlock()

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		bg := context.WithoutCancel(ctx)

		var err error
		if liked {
			err = x.repo.AddLikedIdea(bg, x.userID, idea)
		} else {
			err = x.repo.RemoveLikedIdea(bg, x.userID, idea.Name)
		}
		if err != nil {
			x.mu.Lock()
			x.liked[idea.Name] = !liked
			x.mu.Unlock()
			logging.From(ctx).Warn("failed to persist like", "idea", idea.Name, "error", err)
			x.notify("Could not save your like for " + idea.Name)
			return
		}

		action := model.ActionUnlike
		if liked {
			action = model.ActionLike
			if err := x.agg.AbsorbLike(bg, x.userID, idea); err != nil {
				logging.From(ctx).Warn("failed to absorb like into profile", "error", err)
			}
		}
		if err := x.rec.RecordAction(bg, idea, action); err != nil {
			logging.From(ctx).Warn("failed to record like action", "error", err)
		}
	}()

	return liked, nil
}

// RemixCurrent asks the generator for variations of the current card. A
// per-card latch rejects overlapping requests with ErrRemixInFlight. Titles
// replace the card's remix list in place; full records splice into the deck
// right after the cursor.
func (x *Feed) RemixCurrent(ctx context.Context, full bool) (*model.RemixResult, error) {
	x.mu.Lock()
	if len(x.ideas) == 0 {
		x.mu.Unlock()
		return nil, goerr.Wrap(ErrFeedEmpty, "nothing to remix")
	}
	idea := x.ideas[x.cursor]
	if x.remixing[idea.Name] {
		x.mu.Unlock()
		return nil, goerr.Wrap(ErrRemixInFlight, "dropped overlapping remix", goerr.V("idea", idea.Name))
	}
	x.remixing[idea.Name] = true
	x.mu.Unlock()

	defer func() {
		x.mu.Lock()
		delete(x.remixing, idea.Name)
		x.mu.Unlock()
	}()

	result, err := x.gen.Remix(ctx, idea, full)
	if err != nil {
		return nil, goerr.Wrap(err, "remix failed", goerr.V("idea", idea.Name))
	}

	x.mu.Lock()
	if result.IsTitles() {
		idea.Remixes = result.Titles
	} else {
		x.spliceAfterCursorLocked(result.Ideas)
	}
	x.mu.Unlock()

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		if err := x.rec.RecordAction(context.WithoutCancel(ctx), idea, model.ActionRemix); err != nil {
			logging.From(ctx).Warn("failed to record remix action", "error", err)
		}
	}()

	return result, nil
}

// SelectIdea brings the named idea under the cursor. Name is the identity
// key: if a card with the same name is already in the deck the cursor jumps
// to it, otherwise the idea is spliced in right after the cursor and the
// cursor advances onto it.
func (x *Feed) SelectIdea(ctx context.Context, idea *model.Idea) {
	x.mu.Lock()
	jumped := false
	for i, existing := range x.ideas {
		if existing.Name == idea.Name {
			x.cursor = i
			jumped = true
			break
		}
	}
	if !jumped {
		x.spliceAfterCursorLocked([]*model.Idea{idea})
		x.cursor++
	}
	current := x.ideas[x.cursor]
	x.maybePrefetchLocked(ctx)
	x.mu.Unlock()

	x.recordViewAsync(ctx, current, model.SwipeUp)
}

// ShareCurrent logs a share of the current card
func (x *Feed) ShareCurrent(ctx context.Context) error {
	return x.logCurrent(ctx, model.ActionShare)
}

// ExpandCurrent logs that the current card's detail view was opened
func (x *Feed) ExpandCurrent(ctx context.Context) error {
	return x.logCurrent(ctx, model.ActionExpand)
}

func (x *Feed) logCurrent(ctx context.Context, action model.Action) error {
	x.mu.Lock()
	if len(x.ideas) == 0 {
		x.mu.Unlock()
		return goerr.Wrap(ErrFeedEmpty, "no current idea")
	}
	idea := x.ideas[x.cursor]
	x.mu.Unlock()

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		if err := x.rec.RecordAction(context.WithoutCancel(ctx), idea, action); err != nil {
			logging.From(ctx).Warn("failed to record action", "action", action, "error", err)
		}
	}()
	return nil
}

// Flush blocks until all background writes have drained
func (x *Feed) Flush() {
	x.wg.Wait()
}

func (x *Feed) spliceAfterCursorLocked(ideas []*model.Idea) {
	rest := append([]*model.Idea{}, x.ideas[x.cursor+1:]...)
	x.ideas = append(x.ideas[:x.cursor+1], ideas...)
	x.ideas = append(x.ideas, rest...)
}

func (x *Feed) recordViewAsync(ctx context.Context, idea *model.Idea, direction model.SwipeDirection) {
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		if err := x.rec.RecordView(context.WithoutCancel(ctx), idea, direction); err != nil {
			logging.From(ctx).Warn("failed to record view", "idea", idea.Name, "error", err)
		}
	}()
}

package feed

import (
	"context"

	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
)

// ShouldFetchMore reports whether the remaining run of unseen cards is short
// enough to warrant a prefetch. remaining = total - cursor - 1; at or below
// the threshold the next batch is requested.
func ShouldFetchMore(cursor, total, threshold int) bool {
	return total-cursor-1 <= threshold
}

// maybePrefetchLocked re-evaluates the prefetch predicate after a cursor or
// deck change and kicks off a background batch fetch when it holds. A single
// whole-feed latch drops overlapping triggers instead of queueing them.
// Caller must hold x.mu.
func (x *Feed) maybePrefetchLocked(ctx context.Context) {
	if x.fetching {
		return
	}
	if !ShouldFetchMore(x.cursor, len(x.ideas), x.threshold) {
		return
	}
	x.fetching = true

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		defer func() {
			x.mu.Lock()
			x.fetching = false
			x.mu.Unlock()
		}()

		bg := context.WithoutCancel(ctx)

		doc, err := x.repo.GetUser(bg, x.userID)
		if err != nil {
			logging.From(ctx).Warn("prefetch: failed to load profile", "error", err)
			x.notify("Could not load more ideas")
			return
		}

		ideas, err := x.gen.Generate(bg, doc.Preferences, x.batchSize, x.rec.Seen())
		if err != nil {
			logging.From(ctx).Warn("prefetch: generation failed", "error", err)
			x.notify("Could not load more ideas")
			return
		}
		if len(ideas) == 0 {
			return
		}

		// Returned records are appended verbatim; duplicates against the deck
		// are tolerated and resolved by name identity on selection
		x.mu.Lock()
		x.ideas = append(x.ideas, ideas...)
		x.mu.Unlock()
	}()
}

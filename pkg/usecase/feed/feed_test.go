package feed_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/service/generator"
	"github.com/m-mizutani/idearoulette/pkg/usecase/feed"
	"github.com/m-mizutani/idearoulette/pkg/usecase/profile"
	"github.com/m-mizutani/idearoulette/pkg/usecase/session"
	"google.golang.org/genai"
)

type mockGemini struct {
	handler func() (string, error)
	calls   int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	text, err := m.handler()
	if err != nil {
		return nil, err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}, nil
}

func ideasJSON(names ...string) string {
	out := "["
	for i, name := range names {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{
  "name": %q,
  "icon": "bot",
  "tagline": "tagline of %s",
  "category": "AI / Test",
  "rating": 8.0,
  "description": "description of %s",
  "tags": ["AI"]
}`, name, name, name)
	}
	return out + "]"
}

type deps struct {
	repo *repository.Memory
	mock *mockGemini
	rec  *session.Recorder
}

func newFeed(t *testing.T, handler func() (string, error), opts ...feed.Option) (*feed.Feed, *deps) {
	t.Helper()
	ctx := context.Background()
	userID := model.UserID("u1")

	repo := repository.NewMemory()
	gt.NoError(t, repo.EnsureUser(ctx, userID, "tester"))

	mock := &mockGemini{handler: handler}
	gen := generator.New(mock, generator.WithRateLimit(1000, 1000))
	agg := profile.New(repo)
	rec := session.NewRecorder(repo)
	gt.NoError(t, rec.Start(ctx, userID, model.ClientInfo{Device: "test"}))

	f := feed.New(repo, gen, agg, rec, userID, opts...)
	return f, &deps{repo: repo, mock: mock, rec: rec}
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("idea-%02d", i)
	}
	return out
}

func TestLoadAndCursorBounds(t *testing.T) {
	ctx := context.Background()
	f, _ := newFeed(t, func() (string, error) {
		return ideasJSON("A", "B", "C"), nil
	}, feed.WithPrefetchThreshold(-1), feed.WithInitialBatch(3))

	gt.NoError(t, f.Load(ctx))
	gt.V(t, f.Len()).Equal(3)
	gt.V(t, f.Current().Name).Equal("A")

	// Head: retreat is a no-op
	gt.V(t, f.Retreat(ctx)).Equal(false)
	gt.V(t, f.Current().Name).Equal("A")

	gt.V(t, f.Advance(ctx)).Equal(true)
	gt.V(t, f.Advance(ctx)).Equal(true)
	gt.V(t, f.Current().Name).Equal("C")

	// Tail: advance is a no-op
	gt.V(t, f.Advance(ctx)).Equal(false)
	gt.V(t, f.Current().Name).Equal("C")

	gt.V(t, f.Retreat(ctx)).Equal(true)
	gt.V(t, f.Current().Name).Equal("B")

	f.Flush()
}

func TestLoadFallsBack(t *testing.T) {
	ctx := context.Background()
	f, _ := newFeed(t, func() (string, error) {
		return "", goerr.New("backend down")
	}, feed.WithPrefetchThreshold(-1))

	gt.NoError(t, f.Load(ctx))
	gt.V(t, f.Len() > 0).Equal(true)
	f.Flush()
}

func TestAdvanceBumpsSwipeCountAndUnlock(t *testing.T) {
	ctx := context.Background()
	f, d := newFeed(t, func() (string, error) {
		return ideasJSON(names(12)...), nil
	}, feed.WithPrefetchThreshold(-1), feed.WithInitialBatch(12))

	gt.NoError(t, f.Load(ctx))
	for i := 0; i < 10; i++ {
		gt.V(t, f.Advance(ctx)).Equal(true)
	}
	f.Flush()

	doc := gt.R1(d.repo.GetUser(ctx, "u1")).NoError(t)
	gt.V(t, doc.SwipeCount).Equal(10)
	gt.V(t, doc.PersonalityUnlocked).Equal(true)
}

func TestLikeToggle(t *testing.T) {
	ctx := context.Background()
	f, d := newFeed(t, func() (string, error) {
		return ideasJSON("A", "B"), nil
	}, feed.WithPrefetchThreshold(-1))

	gt.NoError(t, f.Load(ctx))

	liked := gt.R1(f.LikeCurrent(ctx)).NoError(t)
	gt.V(t, liked).Equal(true)
	f.Flush()

	doc := gt.R1(d.repo.GetUser(ctx, "u1")).NoError(t)
	gt.V(t, doc.IsLiked("A")).Equal(true)
	gt.A(t, doc.Preferences.LikedCategories).Has("AI / Test")

	// Toggle back: the durable list shrinks, the profile ratchet does not
	liked = gt.R1(f.LikeCurrent(ctx)).NoError(t)
	gt.V(t, liked).Equal(false)
	f.Flush()

	doc = gt.R1(d.repo.GetUser(ctx, "u1")).NoError(t)
	gt.V(t, doc.IsLiked("A")).Equal(false)
	gt.A(t, doc.Preferences.LikedCategories).Has("AI / Test")
	gt.V(t, f.IsLiked("A")).Equal(false)
}

type failingLikeRepo struct {
	*repository.Memory
}

func (r *failingLikeRepo) AddLikedIdea(ctx context.Context, userID model.UserID, idea *model.Idea) error {
	return goerr.New("write refused")
}

func TestLikeRollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	userID := model.UserID("u1")

	mem := repository.NewMemory()
	gt.NoError(t, mem.EnsureUser(ctx, userID, "tester"))
	repo := &failingLikeRepo{Memory: mem}

	mock := &mockGemini{handler: func() (string, error) {
		return ideasJSON("A"), nil
	}}
	gen := generator.New(mock, generator.WithRateLimit(1000, 1000))
	rec := session.NewRecorder(repo)
	gt.NoError(t, rec.Start(ctx, userID, model.ClientInfo{}))

	var notices []string
	f := feed.New(repo, gen, profile.New(repo), rec, userID,
		feed.WithPrefetchThreshold(-1),
		feed.WithNotify(func(msg string) { notices = append(notices, msg) }))

	gt.NoError(t, f.Load(ctx))

	liked := gt.R1(f.LikeCurrent(ctx)).NoError(t)
	gt.V(t, liked).Equal(true)
	f.Flush()

	// The optimistic state rolled back and the user was told
	gt.V(t, f.IsLiked("A")).Equal(false)
	gt.A(t, notices).Length(1)

	doc := gt.R1(mem.GetUser(ctx, userID)).NoError(t)
	gt.V(t, doc.IsLiked("A")).Equal(false)
}

func TestSelectIdeaDedupByName(t *testing.T) {
	ctx := context.Background()
	f, _ := newFeed(t, func() (string, error) {
		return ideasJSON("A", "B", "C"), nil
	}, feed.WithPrefetchThreshold(-1))

	gt.NoError(t, f.Load(ctx))

	// Present: jump, no growth
	f.SelectIdea(ctx, &model.Idea{Name: "C", Category: "X / Y", Rating: 7.0})
	gt.V(t, f.Len()).Equal(3)
	gt.V(t, f.Current().Name).Equal("C")

	// Absent: splice after cursor and land on it
	f.SelectIdea(ctx, &model.Idea{Name: "D", Category: "X / Y", Rating: 7.0})
	gt.V(t, f.Len()).Equal(4)
	gt.V(t, f.Current().Name).Equal("D")
	gt.V(t, f.Cursor()).Equal(3)

	f.Flush()
}

func TestRemixTitlesReplaceInPlace(t *testing.T) {
	ctx := context.Background()
	responses := []string{ideasJSON("A", "B")}
	f, _ := newFeed(t, func() (string, error) {
		text := responses[0]
		if len(responses) > 1 {
			responses = responses[1:]
		}
		return text, nil
	}, feed.WithPrefetchThreshold(-1))

	gt.NoError(t, f.Load(ctx))
	responses = []string{`["A for Teams", "A Mobile", "AI-Powered A"]`}

	result := gt.R1(f.RemixCurrent(ctx, false)).NoError(t)
	gt.V(t, result.IsTitles()).Equal(true)

	gt.V(t, f.Len()).Equal(2)
	gt.A(t, f.Current().Remixes).Length(3).Has("A Mobile")
	f.Flush()
}

func TestRemixFullRecordsSplice(t *testing.T) {
	ctx := context.Background()
	responses := []string{ideasJSON("A", "B")}
	f, _ := newFeed(t, func() (string, error) {
		text := responses[0]
		if len(responses) > 1 {
			responses = responses[1:]
		}
		return text, nil
	}, feed.WithPrefetchThreshold(-1))

	gt.NoError(t, f.Load(ctx))
	responses = []string{ideasJSON("A-variant-1", "A-variant-2")}

	result := gt.R1(f.RemixCurrent(ctx, true)).NoError(t)
	gt.V(t, result.IsTitles()).Equal(false)

	ideas := f.Ideas()
	gt.A(t, ideas).Length(4)
	gt.V(t, ideas[1].Name).Equal("A-variant-1")
	gt.V(t, ideas[2].Name).Equal("A-variant-2")
	gt.V(t, ideas[3].Name).Equal("B")
	gt.V(t, f.Current().Name).Equal("A")
	f.Flush()
}

func TestRemixSingleFlight(t *testing.T) {
	ctx := context.Background()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	first := true
	f, _ := newFeed(t, func() (string, error) {
		if first {
			first = false
			return ideasJSON("A"), nil
		}
		started <- struct{}{}
		<-block
		return `["A for Teams", "A Mobile", "AI-Powered A"]`, nil
	}, feed.WithPrefetchThreshold(-1))

	gt.NoError(t, f.Load(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		result := gt.R1(f.RemixCurrent(ctx, false)).NoError(t)
		gt.V(t, result.IsTitles()).Equal(true)
	}()

	<-started

	// The overlapping request is rejected, not queued
	_, err := f.RemixCurrent(ctx, false)
	gt.V(t, errors.Is(err, feed.ErrRemixInFlight)).Equal(true)

	close(block)
	<-done
	f.Flush()
}

func TestRemixFailurePropagates(t *testing.T) {
	ctx := context.Background()
	calls := 0
	f, _ := newFeed(t, func() (string, error) {
		calls++
		if calls == 1 {
			return ideasJSON("A"), nil
		}
		return "", goerr.New("backend down")
	}, feed.WithPrefetchThreshold(-1))

	gt.NoError(t, f.Load(ctx))

	gt.R1(f.RemixCurrent(ctx, false)).Error(t)

	// The card is untouched and a later retry is allowed
	gt.A(t, f.Current().Remixes).Length(0)
	f.Flush()
}

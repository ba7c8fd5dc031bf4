package session_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/usecase/session"
)

type mockArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMockArchive() *mockArchive {
	return &mockArchive{objects: map[string][]byte{}}
}

type archiveWriter struct {
	buf  bytes.Buffer
	done func([]byte)
}

func (w *archiveWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *archiveWriter) Close() error {
	w.done(w.buf.Bytes())
	return nil
}

func (m *mockArchive) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &archiveWriter{done: func(data []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.objects[key] = data
	}}, nil
}

func (m *mockArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, goerr.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newIdea(name string) *model.Idea {
	return &model.Idea{
		Name:     name,
		Category: "AI / Test",
		Rating:   8.0,
		Tags:     []string{"AI"},
	}
}

func startRecorder(t *testing.T, repo *repository.Memory, userID model.UserID) *session.Recorder {
	t.Helper()
	gt.NoError(t, repo.EnsureUser(context.Background(), userID, "tester"))
	rec := session.NewRecorder(repo)
	gt.NoError(t, rec.Start(context.Background(), userID, model.ClientInfo{Device: "cli"}))
	return rec
}

func TestRecordViewOncePerIdea(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	rec := startRecorder(t, repo, "u1")

	gt.NoError(t, rec.RecordView(ctx, newIdea("A"), model.SwipeUp))
	gt.NoError(t, rec.RecordView(ctx, newIdea("B"), model.SwipeUp))
	gt.NoError(t, rec.RecordView(ctx, newIdea("A"), model.SwipeDown))

	entries := gt.R1(repo.ListInteractions(ctx, rec.SessionID(), 0)).NoError(t)
	gt.A(t, entries).Length(2)
	gt.V(t, entries[0].IdeaName).Equal("A")
	gt.V(t, entries[1].IdeaName).Equal("B")
	gt.V(t, entries[0].Action).Equal(model.ActionView)

	gt.A(t, rec.Seen()).Length(2)
}

func TestRecordViewSeenWindowCap(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	rec := startRecorder(t, repo, "u1")

	for i := 0; i < model.SeenIdeasCap+50; i++ {
		gt.NoError(t, rec.RecordView(ctx, newIdea(fmt.Sprintf("idea-%03d", i)), model.SwipeUp))
	}

	seen := rec.Seen()
	gt.A(t, seen).Length(model.SeenIdeasCap)
	gt.V(t, seen[0]).Equal("idea-050")
	gt.V(t, seen[len(seen)-1]).Equal(fmt.Sprintf("idea-%03d", model.SeenIdeasCap+49))

	// The persisted window matches the in-memory one
	doc := gt.R1(repo.GetUser(ctx, "u1")).NoError(t)
	gt.A(t, doc.SeenIdeas).Length(model.SeenIdeasCap)

	// A name evicted from the window can be viewed again
	gt.NoError(t, rec.RecordView(ctx, newIdea("idea-000"), model.SwipeUp))
	seen = rec.Seen()
	gt.V(t, seen[len(seen)-1]).Equal("idea-000")
}

func TestRecordViewSeedsFromUserDoc(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	userID := model.UserID("u1")
	gt.NoError(t, repo.EnsureUser(ctx, userID, "tester"))
	gt.NoError(t, repo.SetSeenIdeas(ctx, userID, []string{"A", "B"}))

	rec := session.NewRecorder(repo)
	gt.NoError(t, rec.Start(ctx, userID, model.ClientInfo{}))

	// Names seen in a previous session stay deduplicated
	gt.NoError(t, rec.RecordView(ctx, newIdea("A"), model.SwipeUp))
	entries := gt.R1(repo.ListInteractions(ctx, rec.SessionID(), 0)).NoError(t)
	gt.A(t, entries).Length(0)
}

func TestRecordActionNoDedup(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	rec := startRecorder(t, repo, "u1")

	idea := newIdea("A")
	gt.NoError(t, rec.RecordAction(ctx, idea, model.ActionLike))
	gt.NoError(t, rec.RecordAction(ctx, idea, model.ActionUnlike))
	gt.NoError(t, rec.RecordAction(ctx, idea, model.ActionLike))
	gt.NoError(t, rec.RecordAction(ctx, idea, model.ActionRemix))

	entries := gt.R1(repo.ListInteractions(ctx, rec.SessionID(), 0)).NoError(t)
	gt.A(t, entries).Length(4)
}

func TestRecordActionInvalid(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	rec := startRecorder(t, repo, "u1")

	gt.Error(t, rec.RecordAction(ctx, newIdea("A"), model.Action("bogus")))
}

func TestSessionCounters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	rec := startRecorder(t, repo, "u1")
	sessionID := rec.SessionID()

	gt.NoError(t, rec.RecordView(ctx, newIdea("A"), model.SwipeUp))
	gt.NoError(t, rec.RecordView(ctx, newIdea("B"), model.SwipeUp))
	gt.NoError(t, rec.RecordAction(ctx, newIdea("A"), model.ActionLike))
	gt.NoError(t, rec.RecordAction(ctx, newIdea("B"), model.ActionShare))
	gt.NoError(t, rec.End(ctx))

	stored := repo.GetSession(sessionID)
	gt.V(t, stored == nil).Equal(false)
	gt.V(t, stored.IdeasViewed).Equal(2)
	gt.V(t, stored.SwipeCount).Equal(2)
	gt.V(t, stored.IdeasLiked).Equal(1)
	gt.V(t, stored.IdeasShared).Equal(1)
	gt.V(t, stored.ActionsCount).Equal(4)
	gt.V(t, stored.EndTime == nil).Equal(false)
}

func TestBehaviorCounters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	rec := startRecorder(t, repo, "u1")

	gt.NoError(t, rec.RecordView(ctx, newIdea("A"), model.SwipeUp))
	gt.NoError(t, rec.RecordAction(ctx, newIdea("A"), model.ActionLike))
	gt.NoError(t, rec.RecordAction(ctx, newIdea("A"), model.ActionRemix))

	behavior := repo.Behavior("u1")
	gt.V(t, behavior["totalSessions"]).Equal(1)
	gt.V(t, behavior["totalIdeasViewed"]).Equal(1)
	gt.V(t, behavior["totalSwipes"]).Equal(1)
	gt.V(t, behavior["totalIdeasLiked"]).Equal(1)
	gt.V(t, behavior["totalIdeasRemixed"]).Equal(1)
}

func TestEndArchivesExport(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	userID := model.UserID("u1")
	gt.NoError(t, repo.EnsureUser(ctx, userID, "tester"))

	archive := newMockArchive()
	rec := session.NewRecorder(repo, session.WithArchive(archive))
	gt.NoError(t, rec.Start(ctx, userID, model.ClientInfo{Device: "cli"}))
	sessionID := rec.SessionID()

	gt.NoError(t, rec.RecordView(ctx, newIdea("A"), model.SwipeUp))
	gt.NoError(t, rec.RecordAction(ctx, newIdea("A"), model.ActionLike))
	gt.NoError(t, rec.End(ctx))

	export := gt.R1(session.LoadExport(ctx, archive, sessionID)).NoError(t)
	gt.V(t, export.Session.SessionID).Equal(sessionID)
	gt.V(t, export.Session.IdeasLiked).Equal(1)
	gt.V(t, export.Session.EndTime == nil).Equal(false)
	gt.A(t, export.Interactions).Length(2)
	gt.V(t, export.Interactions[0].IdeaName).Equal("A")
}

func TestLoadExportMissing(t *testing.T) {
	_, err := session.LoadExport(context.Background(), newMockArchive(), "no-such-session")
	gt.Error(t, err)
}

func TestEndBeforeStart(t *testing.T) {
	repo := repository.NewMemory()
	rec := session.NewRecorder(repo)
	gt.NoError(t, rec.End(context.Background()))
}

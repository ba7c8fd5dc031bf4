package profile_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/usecase/profile"
)

func setupUser(t *testing.T, repo repository.Repository, userID model.UserID) {
	t.Helper()
	gt.NoError(t, repo.EnsureUser(context.Background(), userID, "tester"))
}

func TestAbsorbLike(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	userID := model.UserID("u1")
	setupUser(t, repo, userID)

	agg := profile.New(repo)

	idea := &model.Idea{
		Name:     "MeetBot",
		Category: "AI / Productivity",
		Rating:   9.2,
		Tags:     []string{"AI", "productivity"},
	}
	gt.NoError(t, agg.AbsorbLike(ctx, userID, idea))

	doc := gt.R1(repo.GetUser(ctx, userID)).NoError(t)
	gt.A(t, doc.Preferences.LikedCategories).Length(1).Has("AI / Productivity")
	gt.A(t, doc.Preferences.LikedTags).Length(2).Has("AI").Has("productivity")
	gt.A(t, doc.Preferences.PersonalityTraits).
		Has(model.TraitHighStandards).
		Has(model.TraitTechSavvy)
}

func TestAbsorbLikeRatchet(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	userID := model.UserID("u1")
	setupUser(t, repo, userID)

	agg := profile.New(repo)

	idea := &model.Idea{
		Name:     "FarmSight",
		Category: "AgTech / Analytics",
		Rating:   7.9,
		Tags:     []string{"drones", "agriculture"},
	}

	// Absorbing the same like twice must not duplicate entries
	gt.NoError(t, agg.AbsorbLike(ctx, userID, idea))
	gt.NoError(t, agg.AbsorbLike(ctx, userID, idea))

	doc := gt.R1(repo.GetUser(ctx, userID)).NoError(t)
	gt.A(t, doc.Preferences.LikedCategories).Length(1)
	gt.A(t, doc.Preferences.LikedTags).Length(2)
	gt.A(t, doc.Preferences.PersonalityTraits).Length(0)
}

func TestAbsorbLikeTraitThreshold(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	userID := model.UserID("u1")
	setupUser(t, repo, userID)

	agg := profile.New(repo)

	// 8.9 stays below the high-standards threshold; 9.0 reaches it
	gt.NoError(t, agg.AbsorbLike(ctx, userID, &model.Idea{
		Name: "A", Category: "X / Y", Rating: 8.9, Tags: []string{"misc"},
	}))
	doc := gt.R1(repo.GetUser(ctx, userID)).NoError(t)
	gt.V(t, doc.Preferences.HasTrait(model.TraitHighStandards)).Equal(false)

	gt.NoError(t, agg.AbsorbLike(ctx, userID, &model.Idea{
		Name: "B", Category: "X / Z", Rating: 9.0, Tags: []string{"misc"},
	}))
	doc = gt.R1(repo.GetUser(ctx, userID)).NoError(t)
	gt.V(t, doc.Preferences.HasTrait(model.TraitHighStandards)).Equal(true)
}

func TestNoteSwipeLatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	userID := model.UserID("u1")
	setupUser(t, repo, userID)

	agg := profile.New(repo)

	for total := int64(1); total <= 9; total++ {
		gt.NoError(t, agg.NoteSwipe(ctx, userID, total))
	}
	doc := gt.R1(repo.GetUser(ctx, userID)).NoError(t)
	gt.V(t, doc.PersonalityUnlocked).Equal(false)

	gt.NoError(t, agg.NoteSwipe(ctx, userID, 10))
	doc = gt.R1(repo.GetUser(ctx, userID)).NoError(t)
	gt.V(t, doc.PersonalityUnlocked).Equal(true)

	// Past the threshold the latch stays untouched
	gt.NoError(t, agg.NoteSwipe(ctx, userID, 11))
	doc = gt.R1(repo.GetUser(ctx, userID)).NoError(t)
	gt.V(t, doc.PersonalityUnlocked).Equal(true)
}

func TestDerivePersonality(t *testing.T) {
	type testCase struct {
		prefs      *model.Preferences
		swipeCount int64
		likedCount int64
		expect     model.Personality
	}

	cases := map[string]testCase{
		"both traits win over everything": {
			prefs: &model.Preferences{
				PersonalityTraits: []string{model.TraitTechSavvy, model.TraitHighStandards},
				LikedCategories:   []string{"Social / Community"},
			},
			swipeCount: 500,
			likedCount: 50,
			expect:     model.PersonalityTechVisionary,
		},
		"social category": {
			prefs: &model.Preferences{
				LikedCategories: []string{"Social / Community", "AI / Tools"},
			},
			expect: model.PersonalityCommunityBuilder,
		},
		"ai category": {
			prefs: &model.Preferences{
				LikedCategories: []string{"AI / Tools"},
			},
			expect: model.PersonalityAIPioneer,
		},
		"collector above 20 likes": {
			prefs:      &model.Preferences{},
			likedCount: 21,
			expect:     model.PersonalityIdeaCollector,
		},
		"exactly 20 likes is not enough": {
			prefs:      &model.Preferences{},
			likedCount: 20,
			expect:     model.PersonalityEmergingFounder,
		},
		"master above 100 swipes": {
			prefs:      &model.Preferences{},
			swipeCount: 101,
			expect:     model.PersonalityRouletteMaster,
		},
		"default": {
			prefs:  &model.Preferences{},
			expect: model.PersonalityEmergingFounder,
		},
		"nil profile": {
			expect: model.PersonalityEmergingFounder,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := profile.DerivePersonality(tc.prefs, tc.swipeCount, tc.likedCount)
			gt.V(t, got).Equal(tc.expect)
		})
	}
}

package profile

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
)

// highStandardsRating is the rating at which a liked idea marks the profile
// as high-standards
const highStandardsRating = 9.0

// personalityUnlockSwipes is the cumulative swipe count that flips the
// one-time personality latch
const personalityUnlockSwipes = 10

// Aggregator folds likes into the durable preference profile. The profile is
// a one-way ratchet: categories, tags and traits are only ever added, and an
// unlike never removes what the like introduced.
type Aggregator struct {
	repo repository.Repository
}

func New(repo repository.Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// AbsorbLike unions the idea's category and tags into the profile and applies
// the trait rules, then persists the updated profile
func (x *Aggregator) AbsorbLike(ctx context.Context, userID model.UserID, idea *model.Idea) error {
	doc, err := x.repo.GetUser(ctx, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to load profile", goerr.V("user", userID))
	}

	prefs := doc.Preferences
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}

	prefs.LikedCategories = appendUnique(prefs.LikedCategories, idea.Category)
	for _, tag := range idea.Tags {
		prefs.LikedTags = appendUnique(prefs.LikedTags, tag)
	}

	if idea.Rating >= highStandardsRating {
		prefs.PersonalityTraits = appendUnique(prefs.PersonalityTraits, model.TraitHighStandards)
	}
	if idea.HasTag("AI") {
		prefs.PersonalityTraits = appendUnique(prefs.PersonalityTraits, model.TraitTechSavvy)
	}

	if err := x.repo.UpdatePreferences(ctx, userID, prefs); err != nil {
		return goerr.Wrap(err, "failed to persist profile", goerr.V("user", userID))
	}

	return nil
}

// NoteSwipe flips the one-time personality latch when the cumulative count
// reaches the unlock threshold. Checking for equality keeps the write a
// single event even though every swipe calls this.
func (x *Aggregator) NoteSwipe(ctx context.Context, userID model.UserID, total int64) error {
	if total != personalityUnlockSwipes {
		return nil
	}
	if err := x.repo.SetPersonalityUnlocked(ctx, userID, true); err != nil {
		return goerr.Wrap(err, "failed to set personality latch", goerr.V("user", userID))
	}
	return nil
}

// DerivePersonality maps a profile onto the founder personality label. The
// cascade is ordered; the first matching rule wins.
func DerivePersonality(prefs *model.Preferences, swipeCount, likedCount int64) model.Personality {
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}

	if prefs.HasTrait(model.TraitTechSavvy) && prefs.HasTrait(model.TraitHighStandards) {
		return model.PersonalityTechVisionary
	}
	if anyCategoryContains(prefs.LikedCategories, "Social") {
		return model.PersonalityCommunityBuilder
	}
	if anyCategoryContains(prefs.LikedCategories, "AI") {
		return model.PersonalityAIPioneer
	}
	if likedCount > 20 {
		return model.PersonalityIdeaCollector
	}
	if swipeCount > 100 {
		return model.PersonalityRouletteMaster
	}
	return model.PersonalityEmergingFounder
}

func anyCategoryContains(categories []string, substr string) bool {
	for _, cat := range categories {
		if strings.Contains(cat, substr) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

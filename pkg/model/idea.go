package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidIdea = goerr.New("invalid idea")
)

// Idea is one generated startup concept. Name is the only identity key in the
// whole system: two ideas with the same name are the same idea, and the
// generator is asked (but not guaranteed) to keep names unique.
type Idea struct {
	Name        string   `json:"name" firestore:"name" yaml:"name"`
	Icon        string   `json:"icon" firestore:"icon" yaml:"icon"`
	Tagline     string   `json:"tagline" firestore:"tagline" yaml:"tagline"`
	Category    string   `json:"category" firestore:"category" yaml:"category"`
	Rating      float64  `json:"rating" firestore:"rating" yaml:"rating"`
	Description string   `json:"description" firestore:"description" yaml:"description"`
	Tags        []string `json:"tags" firestore:"tags" yaml:"tags"`
	Remixes     []string `json:"remixes" firestore:"remixes" yaml:"remixes"`
}

// Validate checks the fields the feed depends on
func (x *Idea) Validate() error {
	if x.Name == "" {
		return goerr.Wrap(ErrInvalidIdea, "name is empty")
	}
	if x.Category == "" {
		return goerr.Wrap(ErrInvalidIdea, "category is empty", goerr.V("name", x.Name))
	}
	return nil
}

// CategoryGroup returns the leading part of a "Group / Subgroup" category
func (x *Idea) CategoryGroup() string {
	group, _, _ := strings.Cut(x.Category, "/")
	return strings.TrimSpace(group)
}

// HasTag reports whether the idea carries the given tag
func (x *Idea) HasTag(tag string) bool {
	for _, t := range x.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RemixResult is the decoded response of a remix request. Exactly one of
// Titles and Ideas is populated: the generator either returns short variation
// titles for the current card, or full records to splice into the feed.
type RemixResult struct {
	Titles []string
	Ideas  []*Idea
}

// IsTitles reports whether the result carries plain titles
func (r *RemixResult) IsTitles() bool {
	return len(r.Titles) > 0
}

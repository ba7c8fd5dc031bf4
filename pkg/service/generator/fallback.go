package generator

import (
	_ "embed"

	"github.com/m-mizutani/idearoulette/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed fallback.yml
var fallbackIdeasRaw []byte

// Fallback returns up to count pre-written ideas, skipping excluded names.
// It substitutes for the generation boundary when it is unreachable or
// returns garbage; the feed must stay navigable regardless.
func (x *Service) Fallback(count int, exclude []string) []*model.Idea {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}

	var ideas []*model.Idea
	for _, idea := range fallbackIdeas() {
		if _, ok := excluded[idea.Name]; ok {
			continue
		}
		ideas = append(ideas, idea)
		if len(ideas) >= count {
			break
		}
	}
	return ideas
}

func fallbackIdeas() []*model.Idea {
	var ideas []*model.Idea
	// The embedded set is static; a parse failure is a programming error
	if err := yaml.Unmarshal(fallbackIdeasRaw, &ideas); err != nil {
		panic("broken embedded fallback ideas: " + err.Error())
	}
	return ideas
}

// FallbackRemixTitles returns canned variation titles for an idea
func FallbackRemixTitles(idea *model.Idea) []string {
	return []string{
		idea.Name + " for Teams",
		idea.Name + " Mobile",
		"AI-Powered " + idea.Name,
	}
}

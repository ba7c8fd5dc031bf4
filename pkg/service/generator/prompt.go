package generator

import (
	"bytes"
	_ "embed"
	"math/rand"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
)

//go:embed prompt/ideas.md
var ideasPromptRaw string

//go:embed prompt/remix_titles.md
var remixTitlesPromptRaw string

//go:embed prompt/remix_ideas.md
var remixIdeasPromptRaw string

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

var (
	ideasPromptTmpl       = template.Must(template.New("ideas").Funcs(promptFuncs).Parse(ideasPromptRaw))
	remixTitlesPromptTmpl = template.Must(template.New("remix_titles").Funcs(promptFuncs).Parse(remixTitlesPromptRaw))
	remixIdeasPromptTmpl  = template.Must(template.New("remix_ideas").Funcs(promptFuncs).Parse(remixIdeasPromptRaw))
)

// diversityPrompts rotate per request to keep generation from converging on
// the same ideas across batches
var diversityPrompts = []string{
	"Focus on emerging technologies and unexpected combinations",
	"Think about problems that don't have solutions yet",
	"Combine traditional industries with modern tech",
	"Focus on underserved markets and niche communities",
	"Think about post-pandemic lifestyle changes",
	"Consider climate change and sustainability angles",
	"Explore AR/VR and spatial computing possibilities",
	"Think about aging population and accessibility",
	"Consider remote work and digital nomad trends",
	"Focus on mental health and wellness innovations",
}

// excludeWindow limits how many recently seen names go into the prompt. The
// persisted seen window is larger; only the tail fits the prompt budget.
const excludeWindow = 50

type ideasPromptInput struct {
	Count           int
	DiversityPrompt string
	Seed            string
	Timestamp       int64
	Preferences     *model.Preferences
	Exclude         []string
}

type remixPromptInput struct {
	Idea *model.Idea
	Seed string
}

func randomSeed() string {
	return strconv.FormatInt(rand.Int63(), 36)
}

func buildIdeasPrompt(prefs *model.Preferences, count int, exclude []string) (string, error) {
	if len(exclude) > excludeWindow {
		exclude = exclude[len(exclude)-excludeWindow:]
	}

	// A profile with no accumulated likes biases nothing
	if prefs != nil && len(prefs.LikedCategories) == 0 && len(prefs.LikedTags) == 0 {
		prefs = nil
	}

	input := &ideasPromptInput{
		Count:           count,
		DiversityPrompt: diversityPrompts[rand.Intn(len(diversityPrompts))],
		Seed:            randomSeed(),
		Timestamp:       time.Now().UnixMilli(),
		Preferences:     prefs,
		Exclude:         exclude,
	}

	var buf bytes.Buffer
	if err := ideasPromptTmpl.Execute(&buf, input); err != nil {
		return "", goerr.Wrap(err, "failed to render ideas prompt")
	}
	return buf.String(), nil
}

func buildRemixPrompt(idea *model.Idea, full bool) (string, error) {
	input := &remixPromptInput{
		Idea: idea,
		Seed: randomSeed(),
	}

	tmpl := remixTitlesPromptTmpl
	if full {
		tmpl = remixIdeasPromptTmpl
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, input); err != nil {
		return "", goerr.Wrap(err, "failed to render remix prompt", goerr.V("idea", idea.Name))
	}
	return buf.String(), nil
}

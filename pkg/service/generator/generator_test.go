package generator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/service/generator"
	"google.golang.org/genai"
)

type mockGemini struct {
	responses []string
	prompts   []string
	err       error
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for _, content := range contents {
		for _, part := range content.Parts {
			m.prompts = append(m.prompts, part.Text)
		}
	}

	if m.err != nil {
		return nil, m.err
	}

	text := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}, nil
}

const ideasResponse = `[
  {
    "name": "MeetBot",
    "icon": "bot",
    "tagline": "AI that attends meetings for you",
    "category": "AI / Productivity",
    "rating": 8.7,
    "description": "Send an AI stand-in to routine meetings and get a summary with action items.",
    "tags": ["AI", "productivity"]
  },
  {
    "name": "FarmSight",
    "icon": "tractor",
    "tagline": "Drone analytics for small farms",
    "category": "AgTech / Analytics",
    "rating": 7.9,
    "description": "Weekly drone passes turned into crop health maps priced for family farms.",
    "tags": ["drones", "agriculture"]
  }
]`

func TestGenerate(t *testing.T) {
	mock := &mockGemini{responses: []string{ideasResponse}}
	svc := generator.New(mock)

	prefs := &model.Preferences{
		LikedCategories: []string{"AI"},
		LikedTags:       []string{"productivity"},
	}

	ideas := gt.R1(svc.Generate(context.Background(), prefs, 2, []string{"OldIdea"})).NoError(t)
	gt.A(t, ideas).Length(2)
	gt.V(t, ideas[0].Name).Equal("MeetBot")
	gt.V(t, ideas[1].Name).Equal("FarmSight")

	gt.A(t, mock.prompts).Length(1)
	gt.V(t, strings.Contains(mock.prompts[0], "AI")).Equal(true)
	gt.V(t, strings.Contains(mock.prompts[0], "OldIdea")).Equal(true)
}

func TestGenerateTrimsToCount(t *testing.T) {
	mock := &mockGemini{responses: []string{ideasResponse}}
	svc := generator.New(mock)

	ideas := gt.R1(svc.Generate(context.Background(), nil, 1, nil)).NoError(t)
	gt.A(t, ideas).Length(1)
}

func TestGenerateDropsInvalidRecords(t *testing.T) {
	// Second record has a rating outside 0..10 and no name
	payload := `[
  {
    "name": "MeetBot",
    "icon": "bot",
    "tagline": "AI that attends meetings for you",
    "category": "AI / Productivity",
    "rating": 8.7,
    "description": "Send an AI stand-in to routine meetings.",
    "tags": ["AI"]
  },
  {
    "name": "",
    "icon": "x",
    "tagline": "broken",
    "category": "Broken",
    "rating": 42,
    "description": "broken",
    "tags": []
  }
]`

	mock := &mockGemini{responses: []string{payload}}
	svc := generator.New(mock)

	ideas := gt.R1(svc.Generate(context.Background(), nil, 5, nil)).NoError(t)
	gt.A(t, ideas).Length(1)
	gt.V(t, ideas[0].Name).Equal("MeetBot")
}

func TestGenerateMalformedPayload(t *testing.T) {
	mock := &mockGemini{responses: []string{"no array here"}}
	svc := generator.New(mock)

	gt.R1(svc.Generate(context.Background(), nil, 3, nil)).Error(t)
}

func TestGenerateOrFallback(t *testing.T) {
	mock := &mockGemini{responses: []string{"garbage"}}
	svc := generator.New(mock)

	ideas := svc.GenerateOrFallback(context.Background(), nil, 3, []string{"DreamSync"})
	gt.A(t, ideas).Length(2)
	for _, idea := range ideas {
		gt.V(t, idea.Name == "DreamSync").Equal(false)
		gt.NoError(t, idea.Validate())
	}
}

func TestRemixTitles(t *testing.T) {
	mock := &mockGemini{responses: []string{`["MeetBot for Teams", "MeetBot Mobile", "AI-Powered MeetBot"]`}}
	svc := generator.New(mock)

	idea := &model.Idea{
		Name:        "MeetBot",
		Icon:        "bot",
		Tagline:     "AI that attends meetings for you",
		Category:    "AI / Productivity",
		Rating:      8.7,
		Description: "Send an AI stand-in to routine meetings.",
		Tags:        []string{"AI"},
	}

	result := gt.R1(svc.Remix(context.Background(), idea, false)).NoError(t)
	gt.V(t, result.IsTitles()).Equal(true)
	gt.A(t, result.Titles).Length(3)

	gt.A(t, mock.prompts).Length(1)
	gt.V(t, strings.Contains(mock.prompts[0], "MeetBot")).Equal(true)
}

func TestRemixFullIdeas(t *testing.T) {
	mock := &mockGemini{responses: []string{ideasResponse}}
	svc := generator.New(mock)

	idea := &model.Idea{
		Name:        "MeetBot",
		Icon:        "bot",
		Tagline:     "AI that attends meetings for you",
		Category:    "AI / Productivity",
		Rating:      8.7,
		Description: "Send an AI stand-in to routine meetings.",
		Tags:        []string{"AI"},
	}

	result := gt.R1(svc.Remix(context.Background(), idea, true)).NoError(t)
	gt.V(t, result.IsTitles()).Equal(false)
	gt.A(t, result.Ideas).Length(2)
}

func TestFallbackRemixTitles(t *testing.T) {
	idea := &model.Idea{Name: "MeetBot"}
	titles := generator.FallbackRemixTitles(idea)
	gt.A(t, titles).Length(3).Has("MeetBot for Teams")
}

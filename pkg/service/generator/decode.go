package generator

import (
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
)

var (
	ErrMalformedPayload = goerr.New("malformed generation payload")
)

// extractJSONArray cuts the outermost JSON array out of a model response.
// Even with JSON output mode the model occasionally wraps the array in prose
// or code fences.
func extractJSONArray(text string) (string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return "", goerr.Wrap(ErrMalformedPayload, "no JSON array in response")
	}
	return text[start : end+1], nil
}

// decodeIdeas parses a generation response into idea records, validating the
// payload against the idea schema first
func decodeIdeas(text string) ([]*model.Idea, error) {
	raw, err := extractJSONArray(text)
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, goerr.Wrap(ErrMalformedPayload, "invalid JSON", goerr.V("cause", err.Error()))
	}
	if err := validateIdeaPayload(payload); err != nil {
		return nil, goerr.Wrap(ErrMalformedPayload, "schema validation failed", goerr.V("cause", err.Error()))
	}

	var ideas []*model.Idea
	if err := json.Unmarshal([]byte(raw), &ideas); err != nil {
		return nil, goerr.Wrap(ErrMalformedPayload, "failed to decode idea records", goerr.V("cause", err.Error()))
	}

	return ideas, nil
}

// decodeRemix parses a remix response into the tagged union: plain variation
// titles or full idea records. The branch happens here, at the boundary, so
// callers only ever see an explicit RemixResult.
func decodeRemix(text string) (*model.RemixResult, error) {
	raw, err := extractJSONArray(text)
	if err != nil {
		return nil, err
	}

	var titles []string
	if err := json.Unmarshal([]byte(raw), &titles); err == nil {
		if len(titles) == 0 {
			return nil, goerr.Wrap(ErrMalformedPayload, "empty remix response")
		}
		return &model.RemixResult{Titles: titles}, nil
	}

	ideas, err := decodeIdeas(raw)
	if err != nil {
		return nil, err
	}
	if len(ideas) == 0 {
		return nil, goerr.Wrap(ErrMalformedPayload, "empty remix response")
	}

	return &model.RemixResult{Ideas: ideas}, nil
}

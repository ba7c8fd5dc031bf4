package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
)

// IdeaFilter screens generated ideas with Rego policies before they enter the
// feed. Policies live under a directory of .rego files and expose rules under
// the "feed" package; an idea is dropped when data.feed.reject is true for
// input.idea.
type IdeaFilter struct {
	query *rego.PreparedEvalQuery
}

// Load reads all .rego files from policyDir and prepares the feed query.
// An empty directory path or a directory without policies yields a nil
// filter, which admits everything.
func Load(ctx context.Context, policyDir string) (*IdeaFilter, error) {
	if policyDir == "" {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query("data.feed"))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare feed policy query")
	}

	return &IdeaFilter{query: &prepared}, nil
}

// Filter returns the ideas admitted by the policy, preserving order
func (f *IdeaFilter) Filter(ctx context.Context, ideas []*model.Idea) ([]*model.Idea, error) {
	if f == nil || f.query == nil {
		return ideas, nil
	}

	admitted := make([]*model.Idea, 0, len(ideas))
	for _, idea := range ideas {
		reject, err := f.rejects(ctx, idea)
		if err != nil {
			return nil, err
		}
		if reject {
			logging.From(ctx).Info("idea rejected by policy",
				"name", idea.Name, "category", idea.Category)
			continue
		}
		admitted = append(admitted, idea)
	}

	return admitted, nil
}

func (f *IdeaFilter) rejects(ctx context.Context, idea *model.Idea) (bool, error) {
	input := map[string]any{
		"idea": map[string]any{
			"name":        idea.Name,
			"category":    idea.Category,
			"rating":      idea.Rating,
			"tags":        idea.Tags,
			"tagline":     idea.Tagline,
			"description": idea.Description,
		},
	}

	rs, err := f.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate feed policy", goerr.V("idea", idea.Name))
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return false, nil
	}

	reject, _ := data["reject"].(bool)
	return reject, nil
}

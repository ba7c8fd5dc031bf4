package generator

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/adapter"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/policy"
	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Service is the generation boundary: it turns a preference profile and a
// seen-name exclusion list into idea records, and an idea into remix
// variations. Calls run through a rate limiter and a circuit breaker so a
// misbehaving backend degrades to fallbacks instead of hammering the API.
type Service struct {
	gemini  adapter.Gemini
	archive adapter.Storage
	filter  *policy.IdeaFilter
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Option is a functional option for Service
type Option func(*Service)

// WithArchive stores raw payloads that fail decoding into the archive bucket
func WithArchive(archive adapter.Storage) Option {
	return func(x *Service) {
		x.archive = archive
	}
}

// WithFilter screens generated ideas through a Rego policy
func WithFilter(filter *policy.IdeaFilter) Option {
	return func(x *Service) {
		x.filter = filter
	}
}

// WithRateLimit bounds generation calls per second
func WithRateLimit(perSec float64, burst int) Option {
	return func(x *Service) {
		x.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// New creates a generation service on the given Gemini adapter
func New(gemini adapter.Gemini, opts ...Option) *Service {
	x := &Service{
		gemini:  gemini,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}

	x.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "generation",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// Generate requests count fresh ideas biased by the profile and avoiding
// excluded names. Returns between 0 and count records.
func (x *Service) Generate(ctx context.Context, prefs *model.Preferences, count int, exclude []string) ([]*model.Idea, error) {
	prompt, err := buildIdeasPrompt(prefs, count, exclude)
	if err != nil {
		return nil, err
	}

	text, err := x.generateText(ctx, prompt, ideaArraySchema())
	if err != nil {
		return nil, err
	}

	ideas, err := decodeIdeas(text)
	if err != nil {
		x.archivePayload(ctx, "ideas", text)
		return nil, err
	}

	valid := ideas[:0]
	for _, idea := range ideas {
		if err := idea.Validate(); err != nil {
			logging.From(ctx).Warn("dropping invalid generated idea", "error", err)
			continue
		}
		valid = append(valid, idea)
	}

	if x.filter != nil {
		filtered, err := x.filter.Filter(ctx, valid)
		if err != nil {
			return nil, err
		}
		valid = filtered
	}

	if len(valid) > count {
		valid = valid[:count]
	}

	return valid, nil
}

// GenerateOrFallback behaves like Generate but substitutes the fixed
// fallback set on any failure. Used for the initial feed load, which must
// never come up empty because of a backend outage.
func (x *Service) GenerateOrFallback(ctx context.Context, prefs *model.Preferences, count int, exclude []string) []*model.Idea {
	ideas, err := x.Generate(ctx, prefs, count, exclude)
	if err != nil {
		logging.From(ctx).Warn("generation failed, substituting fallback ideas", "error", err)
		return x.Fallback(count, exclude)
	}
	return ideas
}

// Remix requests variations of an idea. With full=false the result carries 3
// short titles; with full=true it carries 3 complete records.
func (x *Service) Remix(ctx context.Context, idea *model.Idea, full bool) (*model.RemixResult, error) {
	if err := idea.Validate(); err != nil {
		return nil, err
	}

	prompt, err := buildRemixPrompt(idea, full)
	if err != nil {
		return nil, err
	}

	schema := titleArraySchema()
	if full {
		schema = ideaArraySchema()
	}

	text, err := x.generateText(ctx, prompt, schema)
	if err != nil {
		return nil, err
	}

	result, err := decodeRemix(text)
	if err != nil {
		x.archivePayload(ctx, "remix", text)
		return nil, err
	}

	return result, nil
}

func (x *Service) generateText(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return "", goerr.Wrap(err, "rate limiter interrupted")
	}

	responseSchema, err := convertJSONSchemaToGenai(schema)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	}

	result, err := x.breaker.Execute(func() (any, error) {
		resp, err := x.gemini.GenerateContent(ctx, genai.Text(prompt), config)
		if err != nil {
			return nil, err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return "", goerr.Wrap(err, "generation call failed")
	}

	return result.(string), nil
}

// archivePayload keeps the raw response of a failed decode for offline
// inspection. Best effort; the original error is what the caller sees.
func (x *Service) archivePayload(ctx context.Context, kind, payload string) {
	if x.archive == nil {
		return
	}

	key := "malformed/" + kind + "/" + time.Now().UTC().Format("2006-01-02") + "/" + uuid.New().String() + ".txt"
	w, err := x.archive.Put(ctx, key)
	if err != nil {
		logging.From(ctx).Warn("failed to open archive object", "key", key, "error", err)
		return
	}
	defer func() {
		if err := w.Close(); err != nil {
			logging.From(ctx).Warn("failed to close archive object", "key", key, "error", err)
		}
	}()

	if _, err := w.Write([]byte(payload)); err != nil {
		logging.From(ctx).Warn("failed to write archive object", "key", key, "error", err)
	}
}

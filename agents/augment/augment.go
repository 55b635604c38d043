// Package augment expands a user question into several phrasing
// variants to widen retrieval and query coverage.
package augment

import (
	"context"
	"strings"

	"github.com/effective-security/xlog"

	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/fewshots"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/prompts"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "agents")

const systemPrompt = `You rewrite a user question about environmental impact
projects, their regions and communes, into alternative phrasings.

Generate up to {{.max_variants}} short variants of the question that keep the
same intent but change wording, synonyms or specificity. Always include the
original question as the first variant. Questions may be in Spanish, keep the
language of the original.`

// DefaultMaxVariants bounds how many question variants are requested.
const DefaultMaxVariants = 5

// GeneratedQueries is the structured output with question variants.
type GeneratedQueries struct {
	Queries []string `json:"queries" yaml:"queries" jsonschema:"title=Queries,description=Alternative phrasings of the user question."`
}

func (g GeneratedQueries) GetContent() string {
	return strings.Join(g.Queries, "\n")
}

// Normalize strips code fences and drops duplicates preserving order.
func (g GeneratedQueries) Normalize() []string {
	seen := map[string]bool{}
	var out []string
	for _, q := range g.Queries {
		q = strings.TrimSpace(strings.Trim(strings.TrimSpace(q), "`"))
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// Augmenter generates question variants with an LLM, degrading to just
// the original question when generation or parsing fails.
type Augmenter struct {
	assistant *assistants.Assistant[GeneratedQueries]
	shots     *fewshots.Set
	k         int
}

type Option func(*Augmenter)

// WithFewShots attaches an example set selected per question.
func WithFewShots(set *fewshots.Set, k int) Option {
	return func(a *Augmenter) {
		a.shots = set
		a.k = k
	}
}

func New(model llms.Model, options ...Option) *Augmenter {
	sysprompt := prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(systemPrompt, []string{"max_variants"}),
	})
	ret := &Augmenter{
		assistant: assistants.NewAssistant[GeneratedQueries](model, sysprompt,
			assistants.WithTemperature(0),
			assistants.WithPromptInput(map[string]any{"max_variants": DefaultMaxVariants}),
		).WithName("question_augmentation_agent").
			WithDescription("Generates alternative phrasings of a user question."),
		k: DefaultMaxVariants,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Augment returns deduplicated question variants, always at least the
// original question.
func (a *Augmenter) Augment(ctx context.Context, question string) []string {
	input := &assistants.CallInput{Input: question}
	if a.shots != nil {
		input.Options = append(input.Options, assistants.WithExamples(a.shots.FewShot(question, a.k)))
	}

	var out GeneratedQueries
	_, err := a.assistant.Run(ctx, input, &out)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", a.assistant.Name(),
			"status", "augmentation_failed",
			"err", err.Error(),
		)
		return []string{question}
	}

	variants := out.Normalize()
	if len(variants) == 0 {
		return []string{question}
	}
	return variants
}

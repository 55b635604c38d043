// Package cypherqa answers questions by generating read-only Cypher
// queries against the knowledge graph. The question is augmented into
// variants, a query is generated per variant, all queries run
// concurrently and the results are synthesized into one answer.
package cypherqa

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"

	"github.com/nviro-labs/pathway/agents/augment"
	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/encoding"
	"github.com/nviro-labs/pathway/fewshots"
	"github.com/nviro-labs/pathway/graph"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/llmutils"
	"github.com/nviro-labs/pathway/pkg/prompts"
	"github.com/nviro-labs/pathway/pkg/schema"
	"github.com/nviro-labs/pathway/tools"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "agents")

// AgentName is the registry name for this agent.
const AgentName = "cypher_query_agent"

// maxResultsChars caps the result payload handed to the synthesis
// prompt, keeping provider payloads reasonable.
const maxResultsChars = 20000

const cypherPrompt = `You translate a question about environmental impact
projects into a single read-only Cypher query for a Neo4j knowledge graph.

The graph schema:
- (p:Project {name}) -[:IN_REGION]-> (r:Region {name})
- (p:Project) -[:IN_COMMUNE]-> (c:Commune {name})
- (p:Project) -[:HAS_CHUNK]-> (ch:Chunk {chunk_id, text, section_title})

Return only the Cypher query. Never use CREATE, MERGE, DELETE, SET,
REMOVE or DROP.`

const answerPrompt = `You synthesize a clear markdown answer from Neo4j
query results. If the result list is very long, summarize patterns and
give examples instead of listing every element. Answer in the language
of the question.`

const fallbackPrompt = `You are an assistant that synthesizes clear
markdown answers from the provided information. If the result list is
very long, summarize patterns and examples instead of listing every
element.`

// CypherQuery is the structured query-generation output.
type CypherQuery struct {
	CypherQuery string `json:"cypher_query" yaml:"cypher_query" jsonschema:"title=Cypher query,description=A single read-only Cypher query."`
}

func (q CypherQuery) GetContent() string { return q.CypherQuery }

// Sanitized strips markdown fences and a leading cypher language tag.
func (q CypherQuery) Sanitized() string {
	cleaned := llmutils.TrimBackticks(strings.TrimSpace(q.CypherQuery))
	cleaned = strings.TrimSpace(cleaned)
	if first, rest, ok := strings.Cut(cleaned, "\n"); ok && strings.EqualFold(strings.TrimSpace(first), "cypher") {
		cleaned = rest
	}
	return strings.TrimSpace(cleaned)
}

// Answer is the structured synthesis output.
type Answer struct {
	Answer string `json:"answer" yaml:"answer" jsonschema:"title=Answer,description=The answer to the question."`
}

func (a Answer) GetContent() string { return a.Answer }

// Agent answers metadata questions over the knowledge graph.
type Agent struct {
	augmenter *augment.Augmenter
	querier   graph.Querier
	cypher    *assistants.Assistant[CypherQuery]
	answer    *assistants.Assistant[Answer]
	fallback  *assistants.Assistant[chatmodel.String]
	shots     *fewshots.Set
	k         int
}

var _ tools.ITool = (*Agent)(nil)

type Option func(*Agent)

// WithFewShots attaches Cypher generation examples selected per question.
func WithFewShots(set *fewshots.Set, k int) Option {
	return func(a *Agent) {
		a.shots = set
		a.k = k
	}
}

func New(model llms.Model, querier graph.Querier, augmenter *augment.Augmenter, options ...Option) *Agent {
	ret := &Agent{
		augmenter: augmenter,
		querier:   querier,
		cypher: assistants.NewAssistant[CypherQuery](model, systemPrompt(cypherPrompt),
			assistants.WithTemperature(0),
		).WithName("cypher_generator"),
		answer: assistants.NewAssistant[Answer](model, systemPrompt(answerPrompt),
			assistants.WithTemperature(0),
		).WithName("cypher_answer_generator"),
		fallback: assistants.NewAssistant[chatmodel.String](model, systemPrompt(fallbackPrompt),
			assistants.WithTemperature(0),
			assistants.WithMode(encoding.ModePlainText),
		).WithName("cypher_answer_fallback"),
		k: 5,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

func systemPrompt(text string) prompts.FormatPrompter {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(text, nil),
	})
}

func (a *Agent) Name() string { return AgentName }

func (a *Agent) Description() string {
	return "Answers questions about project metadata: names, regions, communes, counts and filters, by querying the knowledge graph."
}

func (a *Agent) Parameters() *jsonschema.Schema {
	sc, err := schema.New(reflect.TypeOf(chatmodel.InputRequest{}))
	if err != nil {
		return nil
	}
	return sc.Parameters
}

func (a *Agent) Call(ctx context.Context, input string) (string, error) {
	question := input
	var parsed chatmodel.InputRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &parsed); err == nil && parsed.Input != "" {
		question = parsed.Input
	}
	return a.Run(ctx, question)
}

// Run executes the full pipeline for a question.
func (a *Agent) Run(ctx context.Context, question string) (string, error) {
	variants := a.augmenter.Augment(ctx, question)

	queries := a.generateQueries(ctx, variants)
	if len(queries) == 0 {
		return "", errors.Newf("agent %s: no Cypher queries generated for question", AgentName)
	}

	results := a.runQueries(ctx, queries)

	return a.generateAnswer(ctx, question, results)
}

// generateQueries produces one Cypher query per question variant,
// skipping variants whose generation failed.
func (a *Agent) generateQueries(ctx context.Context, variants []string) []string {
	generated := make([]string, len(variants))

	var wg sync.WaitGroup
	wg.Add(len(variants))
	for i, variant := range variants {
		go func(index int, question string) {
			defer wg.Done()

			input := &assistants.CallInput{Input: question}
			if a.shots != nil {
				input.Options = append(input.Options, assistants.WithExamples(a.shots.FewShot(question, a.k)))
			}

			var out CypherQuery
			_, err := a.cypher.Run(ctx, input, &out)
			if err != nil {
				logger.ContextKV(ctx, xlog.WARNING,
					"agent", a.cypher.Name(),
					"status", "cypher_generation_failed",
					"err", err.Error(),
				)
				return
			}
			generated[index] = out.Sanitized()
		}(i, variant)
	}
	wg.Wait()

	seen := map[string]bool{}
	var queries []string
	for _, q := range generated {
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
	}
	return queries
}

// runQueries executes all queries concurrently. Failures come back as
// JSON error payloads so the synthesis stage always has material.
func (a *Agent) runQueries(ctx context.Context, queries []string) []string {
	results := make([]string, len(queries))

	var wg sync.WaitGroup
	wg.Add(len(queries))
	for i, query := range queries {
		go func(index int, cypher string) {
			defer wg.Done()
			results[index] = graph.RunJSON(ctx, a.querier, cypher, nil)
		}(i, query)
	}
	wg.Wait()

	return results
}

func (a *Agent) generateAnswer(ctx context.Context, question string, results []string) (string, error) {
	joined := llmutils.HeadTail(strings.Join(results, "\n"), maxResultsChars)
	prompt := fmt.Sprintf("Question: %s\n\nNumber of results: %d\n\nResults (may be truncated):\n%s\n\nGenerate a complete answer in markdown.",
		question, len(results), joined)

	var ans Answer
	_, err := a.answer.Run(ctx, &assistants.CallInput{Input: prompt}, &ans)
	if err == nil && ans.Answer != "" {
		return ans.Answer, nil
	}

	logger.ContextKV(ctx, xlog.WARNING,
		"agent", a.answer.Name(),
		"status", "structured_answer_fallback",
	)

	var out chatmodel.String
	_, err = a.fallback.Run(ctx, &assistants.CallInput{Input: prompt}, &out)
	if err != nil {
		return "", err
	}
	return out.GetContent(), nil
}

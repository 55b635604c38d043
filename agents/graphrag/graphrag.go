// Package graphrag answers content questions over the document chunks
// of the knowledge graph. Question variants are searched concurrently
// with the hybrid retriever and the retrieved chunks are synthesized
// into one answer.
package graphrag

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"

	"github.com/nviro-labs/pathway/agents/augment"
	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/encoding"
	"github.com/nviro-labs/pathway/graph"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/llmutils"
	"github.com/nviro-labs/pathway/pkg/prompts"
	"github.com/nviro-labs/pathway/pkg/schema"
	"github.com/nviro-labs/pathway/tools"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "agents")

// AgentName is the registry name for this agent.
const AgentName = "hybrid_graphrag_agent"

// maxContextChars caps the retrieved context handed to the synthesis
// prompt.
const maxContextChars = 20000

const synthPrompt = `You answer questions about environmental impact
projects using only the retrieved document excerpts below. Cite the
project and section a statement comes from when possible. If the
excerpts do not contain the answer, say so. Answer in the language of
the question, in markdown.`

// Agent retrieves document chunks and synthesizes answers.
type Agent struct {
	augmenter *augment.Augmenter
	retriever *graph.HybridRetriever
	synth     *assistants.Assistant[chatmodel.String]
}

var _ tools.ITool = (*Agent)(nil)

func New(model llms.Model, retriever *graph.HybridRetriever, augmenter *augment.Augmenter) *Agent {
	sysprompt := prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(synthPrompt, nil),
	})
	return &Agent{
		augmenter: augmenter,
		retriever: retriever,
		synth: assistants.NewAssistant[chatmodel.String](model, sysprompt,
			assistants.WithTemperature(0),
			assistants.WithMode(encoding.ModePlainText),
		).WithName("graphrag_synthesizer"),
	}
}

func (a *Agent) Name() string { return AgentName }

func (a *Agent) Description() string {
	return "Answers questions about document content: descriptions, impacts, measures, by hybrid search over project document chunks."
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

	chunks := a.search(ctx, variants)

	return a.synthesize(ctx, question, chunks)
}

// search runs the retriever for all variants concurrently and merges
// the chunks by id. A failed search contributes nothing, the pipeline
// continues with whatever the other variants found.
func (a *Agent) search(ctx context.Context, variants []string) []graph.Chunk {
	found := make([][]graph.Chunk, len(variants))

	var wg sync.WaitGroup
	wg.Add(len(variants))
	for i, variant := range variants {
		go func(index int, query string) {
			defer wg.Done()
			chunks, err := a.retriever.Search(ctx, query)
			if err != nil {
				logger.ContextKV(ctx, xlog.WARNING,
					"agent", AgentName,
					"status", "retrieval_failed",
					"err", err.Error(),
				)
				return
			}
			found[index] = chunks
		}(i, variant)
	}
	wg.Wait()

	seen := map[string]bool{}
	var merged []graph.Chunk
	for _, chunks := range found {
		for _, chunk := range chunks {
			if seen[chunk.ID] {
				continue
			}
			seen[chunk.ID] = true
			merged = append(merged, chunk)
		}
	}
	return merged
}

func (a *Agent) synthesize(ctx context.Context, question string, chunks []graph.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "No relevant documents were found for this question.", nil
	}

	var sb strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&sb, "[%d] Project: %s", i+1, chunk.ProjectName)
		if chunk.SectionTitle != "" {
			fmt.Fprintf(&sb, " | Section: %s", chunk.SectionTitle)
		}
		if len(chunk.Regions) > 0 {
			fmt.Fprintf(&sb, " | Regions: %s", strings.Join(chunk.Regions, ", "))
		}
		sb.WriteString("\n")
		sb.WriteString(chunk.Text)
		sb.WriteString("\n\n")
	}

	prompt := fmt.Sprintf("Question: %s\n\nRetrieved excerpts:\n%s\nAnswer the question using only these excerpts.",
		question, llmutils.HeadTail(sb.String(), maxContextChars))

	var out chatmodel.String
	_, err := a.synth.Run(ctx, &assistants.CallInput{Input: prompt}, &out)
	if err != nil {
		return "", err
	}
	return out.GetContent(), nil
}

// Package planner turns a user question into an executable plan of
// tool-backed steps, or a direct response when no tools are needed.
package planner

import (
	"context"
	"strings"

	"github.com/effective-security/xlog"

	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/fewshots"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/llmutils"
	"github.com/nviro-labs/pathway/pkg/prompts"
	"github.com/nviro-labs/pathway/tools"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "agents")

const systemPrompt = `You are a planning agent for a knowledge graph of
environmental impact projects in Chile, organized by regions and communes.

Break the user's request into a short sequence of steps. For each step pick
exactly one tool from the available tools listed in the request, and give the
instruction the tool should execute. Leave result empty and is_complete false.

If the question is trivial and needs no tools, return an empty steps list and
answer in direct_response_to_the_user.`

// Step is one unit of work in a plan, executed with a single tool.
type Step struct {
	Instruction   string `json:"instruction" yaml:"instruction" jsonschema:"title=Instruction,description=The instruction to be executed in this step."`
	SuggestedTool string `json:"suggested_tool" yaml:"suggested_tool" jsonschema:"title=Suggested tool,description=The tool suggested to execute this step."`
	Reasoning     string `json:"reasoning" yaml:"reasoning" jsonschema:"title=Reasoning,description=The reasoning for this step."`
	Result        string `json:"result" yaml:"result" jsonschema:"title=Result,description=The result of the step."`
	IsComplete    bool   `json:"is_complete" yaml:"is_complete" jsonschema:"title=Is complete,description=Whether this step has been completed or not."`
}

// Plan is the structured planner output.
type Plan struct {
	Goal  string `json:"goal" yaml:"goal" jsonschema:"title=Goal,description=The goal of the plan based on the user's request."`
	Steps []Step `json:"steps" yaml:"steps" jsonschema:"title=Steps,description=List of steps to be executed to achieve the goal."`
	// DirectResponse answers trivial questions without executing tools.
	DirectResponse string `json:"direct_response_to_the_user" yaml:"direct_response_to_the_user" jsonschema:"title=Direct response,description=The direct response to a user trivial question when no tools are needed."`
}

func (p Plan) GetContent() string {
	if p.DirectResponse != "" && len(p.Steps) == 0 {
		return p.DirectResponse
	}
	return llmutils.ToJSON(p)
}

// IsComplete reports whether all steps have been executed.
func (p *Plan) IsComplete() bool {
	for i := range p.Steps {
		if !p.Steps[i].IsComplete {
			return false
		}
	}
	return true
}

// Planner generates tool-aware plans.
type Planner struct {
	assistant *assistants.Assistant[Plan]
	registry  *tools.Registry
	shots     *fewshots.Set
	k         int
}

type Option func(*Planner)

// WithFewShots attaches planning examples selected per question.
func WithFewShots(set *fewshots.Set, k int) Option {
	return func(p *Planner) {
		p.shots = set
		p.k = k
	}
}

func New(model llms.Model, registry *tools.Registry, options ...Option) *Planner {
	sysprompt := prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(systemPrompt, nil),
	})
	ret := &Planner{
		assistant: assistants.NewAssistant[Plan](model, sysprompt,
			assistants.WithTemperature(0),
		).WithName("planner_agent").
			WithDescription("Creates a plan of tool-backed steps to answer a question."),
		registry: registry,
		k:        5,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Plan generates a plan for the question with awareness of the
// registered tools.
func (p *Planner) Plan(ctx context.Context, question string) (*Plan, error) {
	var sb strings.Builder
	sb.WriteString(p.registry.PromptBlock())
	sb.WriteString("\nUser Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nCreate a plan to answer this question using ONLY the available tools listed above.\nFor each step, specify the exact tool name from the list.")

	input := &assistants.CallInput{Input: sb.String()}
	if p.shots != nil {
		input.Options = append(input.Options, assistants.WithExamples(p.shots.FewShot(question, p.k)))
	}

	var plan Plan
	_, err := p.assistant.Run(ctx, input, &plan)
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"agent", p.assistant.Name(),
		"status", "plan_generated",
		"steps", len(plan.Steps),
	)
	return &plan, nil
}

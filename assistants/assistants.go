// Package assistants provides the agent runtime: a typed LLM call loop
// with tool dispatch, message history and output parsing.
package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/xlog"

	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/tools"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "assistants")

const (
	// DefaultMaxRetries is the number of retries on an empty LLM response.
	DefaultMaxRetries = 3
	// DefaultMaxMessages caps the message history sent in a single run.
	DefaultMaxMessages = 100
	// DefaultMaxContentSize caps the total bytes sent in a single run.
	DefaultMaxContentSize = 1024 * 1024
	// DefaultMaxToolCalls caps the total tool calls in a single run.
	DefaultMaxToolCalls = 25
)

// CallInput is the input for a single assistant run.
type CallInput struct {
	// Input is the user message.
	Input string
	// PromptInputs are values for the system prompt template.
	PromptInputs map[string]any
	// Messages are extra messages appended after the user message,
	// such as scratch notes from a calling agent.
	Messages []llms.Message
	// Options override the assistant configuration for this call.
	Options []Option
}

// ProvidePromptInputsFunc returns extra prompt inputs for an input,
// resolved at call time.
type ProvidePromptInputsFunc func(ctx context.Context, input string) (map[string]any, error)

type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant, to be used
	// in the prompt of other Assistants or LLMs.
	Description() string
	// FormatPrompt renders the system prompt with the given inputs.
	FormatPrompt(values map[string]any) (llms.PromptValue, error)
	GetPromptInputVariables() []string

	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

type TypeableAssistant[O chatmodel.ContentProvider] interface {
	IAssistant
	// Run executes the assistant and parses the response into the output type.
	Run(ctx context.Context, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, error)
}

// IAssistantTool is a tool backed by an assistant, allowing call
// options to be forwarded.
type IAssistantTool interface {
	tools.ITool
	CallAssistant(ctx context.Context, input string, options ...Option) (string, error)
}

// Callback receives run lifecycle events.
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, agent IAssistant, input string)
	OnAssistantEnd(ctx context.Context, agent IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, agent IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMParseError(ctx context.Context, agent IAssistant, input string, response string, err error)
	OnAssistantLLMCallStart(ctx context.Context, agent IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, agent IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, agent IAssistant, tool string)
}

func GetDescriptions(list ...IAssistant) string {
	var ts strings.Builder
	for _, item := range list {
		ts.WriteString(fmt.Sprintf("- `%s`: %s\n", item.Name(), item.Description()))
	}
	return ts.String()
}

func MapAssistants(list ...IAssistant) map[string]IAssistant {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]IAssistant, len(list))
	for _, a := range list {
		m[a.Name()] = a
	}
	return m
}

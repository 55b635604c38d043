package assistants_test

import (
	"context"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/prompts"
	"github.com/nviro-labs/pathway/store"
)

// fakeModel replays scripted responses and records the requests.
type fakeModel struct {
	responses []*llms.ContentResponse
	requests  [][]llms.Message
	err       error
}

func (m *fakeModel) GetName() string                    { return "fake-model" }
func (m *fakeModel) GetProviderType() llms.ProviderType { return llms.ProviderBedrock }

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.requests = append(m.requests, messages)
	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

type echoTool struct{}

func (t *echoTool) Name() string                   { return "list_regions" }
func (t *echoTool) Description() string            { return "List all regions." }
func (t *echoTool) Parameters() *jsonschema.Schema { return nil }
func (t *echoTool) Call(_ context.Context, input string) (string, error) {
	return `{"regions":["Atacama","Coquimbo"]}`, nil
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolCallResponse(name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				ToolCalls: []llms.ToolCall{
					{
						ID:   "call_1",
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      name,
							Arguments: args,
						},
					},
				},
			},
		},
	}
}

func sysPrompt(t *testing.T) *prompts.ChatPromptTemplate {
	t.Helper()
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate("You answer questions about regions and projects.", nil),
	})
}

func Test_AssistantCall(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			textResponse(`{"content":"There are 16 regions."}`),
		},
	}

	ag := assistants.NewAssistant[chatmodel.OutputResult](model, sysPrompt(t)).
		WithName("Regions").
		WithDescription("Answers region questions.")

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("", nil))

	var out chatmodel.OutputResult
	resp, err := ag.Run(ctx, &assistants.CallInput{Input: "How many regions are there?"}, &out)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "There are 16 regions.", out.Content)

	// system prompt first, then the user question
	require.Len(t, model.requests, 1)
	sent := model.requests[0]
	require.Len(t, sent, 2)
	assert.Equal(t, llms.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].GetContent(), "# OUTPUT SCHEMA")
	assert.Equal(t, llms.RoleHuman, sent[1].Role)
}

func Test_AssistantToolLoop(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			toolCallResponse("list_regions", `{}`),
			textResponse(`{"content":"Found 2 regions."}`),
		},
	}

	ag := assistants.NewAssistant[chatmodel.OutputResult](model, sysPrompt(t)).
		WithName("Regions").
		WithTools(&echoTool{})

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("", nil))

	var out chatmodel.OutputResult
	_, err := ag.Run(ctx, &assistants.CallInput{Input: "List the regions"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Found 2 regions.", out.Content)

	require.Len(t, model.requests, 2)
	// second request carries the tool call and its response
	second := model.requests[1]
	require.GreaterOrEqual(t, len(second), 4)
	assert.Equal(t, llms.RoleAI, second[2].Role)
	assert.Equal(t, llms.RoleTool, second[3].Role)
	assert.Contains(t, second[3].GetContent(), "Atacama")
}

func Test_AssistantToolNotFound(t *testing.T) {
	t.Parallel()

	// the model keeps asking for a tool that does not exist
	model := &fakeModel{
		responses: []*llms.ContentResponse{
			toolCallResponse("list_planets", `{}`),
		},
	}

	ag := assistants.NewAssistant[chatmodel.OutputResult](model, sysPrompt(t)).
		WithName("Regions").
		WithTools(&echoTool{})

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("", nil))

	var out chatmodel.OutputResult
	_, err := ag.Run(ctx, &assistants.CallInput{Input: "List the planets"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found tools is exceeded")
}

func Test_AssistantEmptyResponseRetries(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{{}},
	}

	ag := assistants.NewAssistant[chatmodel.OutputResult](model, sysPrompt(t)).
		WithName("Regions")

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("", nil))

	var out chatmodel.OutputResult
	_, err := ag.Run(ctx, &assistants.CallInput{Input: "anything"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response after 3 retries")
	assert.Len(t, model.requests, 3)
}

func Test_AssistantStoreHistory(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			textResponse(`{"content":"Copiapo is in Atacama."}`),
		},
	}

	memStore := store.NewMemoryStore()
	ag := assistants.NewAssistant[chatmodel.OutputResult](model, sysPrompt(t),
		assistants.WithStore(memStore)).
		WithName("Regions")

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat1", nil))

	var out chatmodel.OutputResult
	_, err := ag.Run(ctx, &assistants.CallInput{Input: "Where is Copiapo?"}, &out)
	require.NoError(t, err)

	msgs := memStore.Messages(ctx)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, llms.RoleAI, msgs[1].Role)
	assert.Equal(t, "Copiapo is in Atacama.", msgs[1].GetContent())
}

func Test_AssistantTool(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			textResponse(`{"content":"12 projects in Copiapo."}`),
		},
	}

	ag := assistants.NewAssistant[chatmodel.OutputResult](model, sysPrompt(t)).
		WithName("Projects").
		WithDescription("Answers project questions.")

	tool, err := assistants.NewAssistantTool[chatmodel.InputRequest](ag)
	require.NoError(t, err)
	assert.Equal(t, "Projects", tool.Name())
	require.NotNil(t, tool.Parameters())

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("", nil))

	res, err := tool.Call(ctx, `{"input":"How many projects are in Copiapo?"}`)
	require.NoError(t, err)
	assert.Contains(t, res, "12 projects in Copiapo.")

	_, err = tool.Call(ctx, `not json`)
	require.Error(t, err)
	assert.ErrorIs(t, err, chatmodel.ErrFailedUnmarshalInput)
}

package planner_test

import (
	"context"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/agents/planner"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/tools"
)

type fakeModel struct {
	responses []*llms.ContentResponse
	requests  [][]llms.Message
}

func (m *fakeModel) GetName() string                    { return "fake-model" }
func (m *fakeModel) GetProviderType() llms.ProviderType { return llms.ProviderBedrock }

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.requests = append(m.requests, messages)
	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

type fakeTool struct{ name string }

func (t *fakeTool) Name() string                   { return t.name }
func (t *fakeTool) Description() string            { return "A tool." }
func (t *fakeTool) Parameters() *jsonschema.Schema { return nil }
func (t *fakeTool) Call(_ context.Context, _ string) (string, error) {
	return "{}", nil
}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "list_regions"}, tools.Info{
		Keywords: []string{"regions"},
	}))
	require.NoError(t, reg.Register(&fakeTool{name: "cypher_query_agent"}, tools.Info{
		Keywords: []string{"cypher", "metadata"},
	}))
	return reg
}

func Test_Plan(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			{Choices: []*llms.ContentChoice{{Content: `{
				"goal": "List all regions",
				"steps": [
					{"instruction": "List all regions", "suggested_tool": "list_regions", "reasoning": "direct lookup", "result": "", "is_complete": false}
				],
				"direct_response_to_the_user": ""
			}`}}},
		},
	}

	p := planner.New(model, newRegistry(t))
	plan, err := p.Plan(context.Background(), "cuales son las regiones?")
	require.NoError(t, err)

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "list_regions", plan.Steps[0].SuggestedTool)
	assert.False(t, plan.IsComplete())

	plan.Steps[0].IsComplete = true
	assert.True(t, plan.IsComplete())

	// The request carries the tool block and the question.
	require.Len(t, model.requests, 1)
	sent := model.requests[0]
	require.Len(t, sent, 2)
	human := sent[1].GetContent()
	assert.Contains(t, human, "use only these exact tool names")
	assert.Contains(t, human, "list_regions")
	assert.Contains(t, human, "cuales son las regiones?")
	assert.Contains(t, human, "ONLY the available tools")
}

func Test_Plan_DirectResponse(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			{Choices: []*llms.ContentChoice{{Content: `{
				"goal": "Greet",
				"steps": [],
				"direct_response_to_the_user": "Hola! En que puedo ayudarte?"
			}`}}},
		},
	}

	p := planner.New(model, newRegistry(t))
	plan, err := p.Plan(context.Background(), "hola")
	require.NoError(t, err)

	assert.Empty(t, plan.Steps)
	assert.Equal(t, "Hola! En que puedo ayudarte?", plan.DirectResponse)
	assert.Equal(t, "Hola! En que puedo ayudarte?", plan.GetContent())
	assert.True(t, plan.IsComplete())
}

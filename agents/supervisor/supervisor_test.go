package supervisor_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/agents/executor"
	"github.com/nviro-labs/pathway/agents/planner"
	"github.com/nviro-labs/pathway/agents/supervisor"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/tools"
)

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

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

type fakeTool struct {
	name   string
	output string
	inputs []string
}

func (t *fakeTool) Name() string                   { return t.name }
func (t *fakeTool) Description() string            { return "A tool." }
func (t *fakeTool) Parameters() *jsonschema.Schema { return nil }
func (t *fakeTool) Call(_ context.Context, input string) (string, error) {
	t.inputs = append(t.inputs, input)
	return t.output, nil
}

func newSupervisor(model *fakeModel, reg *tools.Registry, opts ...supervisor.Option) *supervisor.Supervisor {
	return supervisor.New(planner.New(model, reg), executor.New(reg), reg, opts...)
}

func Test_Run(t *testing.T) {
	t.Parallel()

	listTool := &fakeTool{name: "list_regions", output: `{"regions":["Atacama"],"count":1}`}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(listTool, tools.Info{Keywords: []string{"regions", "list"}}))

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			textResponse(`{
				"goal": "List regions",
				"steps": [
					{"instruction": "List all regions", "suggested_tool": "region_lister", "reasoning": "lookup", "result": "", "is_complete": false}
				],
				"direct_response_to_the_user": ""
			}`),
		},
	}

	var events []supervisor.Event
	s := newSupervisor(model, reg, supervisor.WithEvents(func(ev supervisor.Event) {
		events = append(events, ev)
	}))

	res := s.Run(context.Background(), "cuales son las regiones?")
	require.True(t, res.Complete)
	assert.Empty(t, res.Errors)

	// The invented tool name was mapped by keywords before execution.
	assert.Equal(t, "list_regions", res.Plan.Steps[0].SuggestedTool)
	assert.Equal(t, []string{"{}"}, listTool.inputs)
	assert.Contains(t, res.Answer, `{"regions":["Atacama"],"count":1}`)

	var nodes []string
	for _, ev := range events {
		nodes = append(nodes, ev.Node)
	}
	// validate_plan fires once per substitution plus the summary
	assert.Equal(t, []string{
		"inject_tools", "generate_plan", "plan_generated",
		"validate_plan", "validate_plan", "execute", "finalize",
	}, nodes)
	assert.Equal(t, "1 steps validated, 1 substituted", events[4].Detail)
}

func Test_Run_ValidateEventOnCleanPlan(t *testing.T) {
	t.Parallel()

	listTool := &fakeTool{name: "list_regions", output: `{"regions":[],"count":0}`}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(listTool, tools.Info{Keywords: []string{"regions"}}))

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			textResponse(`{
				"goal": "List regions",
				"steps": [
					{"instruction": "List all regions", "suggested_tool": "list_regions", "reasoning": "lookup", "result": "", "is_complete": false}
				],
				"direct_response_to_the_user": ""
			}`),
		},
	}

	var events []supervisor.Event
	s := newSupervisor(model, reg, supervisor.WithEvents(func(ev supervisor.Event) {
		events = append(events, ev)
	}))

	res := s.Run(context.Background(), "list the regions")
	require.True(t, res.Complete)

	// A plan needing no substitutions still reports validation.
	var validated []string
	for _, ev := range events {
		if ev.Node == "validate_plan" {
			validated = append(validated, ev.Detail)
		}
	}
	assert.Equal(t, []string{"1 steps validated, 0 substituted"}, validated)
}

func Test_Run_DirectAnswer(t *testing.T) {
	t.Parallel()

	reg := tools.NewRegistry()
	model := &fakeModel{
		responses: []*llms.ContentResponse{
			textResponse(`{"goal":"Greet","steps":[],"direct_response_to_the_user":"Hola!"}`),
		},
	}

	var events []supervisor.Event
	s := newSupervisor(model, reg, supervisor.WithEvents(func(ev supervisor.Event) {
		events = append(events, ev)
	}))

	res := s.Run(context.Background(), "hola")
	assert.Equal(t, "Hola!", res.Answer)
	assert.True(t, res.Complete)
	assert.Empty(t, res.ToolResults)

	last := events[len(events)-1]
	assert.Equal(t, "direct_answer", last.Node)
}

func Test_Run_PlanningFailure(t *testing.T) {
	t.Parallel()

	reg := tools.NewRegistry()
	model := &fakeModel{err: errors.New("model unavailable")}

	s := newSupervisor(model, reg)
	res := s.Run(context.Background(), "anything")

	assert.True(t, res.Complete)
	assert.Equal(t, "I encountered an error while planning how to answer your question.", res.Answer)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Failed to generate plan")
}

package executor_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/agents/executor"
	"github.com/nviro-labs/pathway/agents/planner"
	"github.com/nviro-labs/pathway/callbacks"
	"github.com/nviro-labs/pathway/pkg/schema"
	"github.com/nviro-labs/pathway/tools"
)

type regionInput struct {
	Region string `json:"region"`
}

// fakeTool records its inputs and replays a scripted output.
type fakeTool struct {
	name      string
	paramType any
	output    string
	err       error
	inputs    []string
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "A tool." }

func (t *fakeTool) Parameters() *jsonschema.Schema {
	if t.paramType == nil {
		return nil
	}
	sc, err := schema.New(reflect.TypeOf(t.paramType))
	if err != nil {
		return nil
	}
	return sc.Parameters
}

func (t *fakeTool) Call(_ context.Context, input string) (string, error) {
	t.inputs = append(t.inputs, input)
	return t.output, t.err
}

// fakeReasoner implements ResultsAware.
type fakeReasoner struct {
	fakeTool
	current []any
	partial []any
}

func (t *fakeReasoner) Reason(_ context.Context, instruction string, current, partial []any) (string, error) {
	t.inputs = append(t.inputs, instruction)
	t.current = current
	t.partial = partial
	return t.output, t.err
}

func step(instruction, tool string) planner.Step {
	return planner.Step{Instruction: instruction, SuggestedTool: tool}
}

func Test_Execute_DirectResponse(t *testing.T) {
	t.Parallel()

	e := executor.New(tools.NewRegistry())
	res := e.Execute(context.Background(), &planner.Plan{DirectResponse: "Hola!"})

	assert.Equal(t, "Hola!", res.Answer)
	assert.True(t, res.Complete)
	assert.Empty(t, res.ToolResults)
}

func Test_Execute_EmptyPlan(t *testing.T) {
	t.Parallel()

	e := executor.New(tools.NewRegistry())
	res := e.Execute(context.Background(), nil)

	assert.Equal(t, "No plan was provided to execute.", res.Answer)
	assert.Equal(t, []string{"no plan provided"}, res.Errors)
	assert.True(t, res.Complete)
}

func Test_Execute_Steps(t *testing.T) {
	t.Parallel()

	listTool := &fakeTool{name: "list_regions", output: `{"regions":["Atacama"],"count":1}`}
	regionTool := &fakeTool{name: "list_communes_in_region", paramType: regionInput{}, output: `{"communes":["Copiapó"],"count":1}`}

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(listTool, tools.Info{Keywords: []string{"regions"}}))
	require.NoError(t, reg.Register(regionTool, tools.Info{Keywords: []string{"communes", "region"}}))

	rec := callbacks.NewRecorder()
	e := executor.New(reg, executor.WithCallback(rec))

	plan := &planner.Plan{
		Goal: "Communes of Atacama",
		Steps: []planner.Step{
			step("List all regions", "list_regions"),
			step("List communes región de Atacama", "list_communes_in_region"),
		},
	}
	res := e.Execute(context.Background(), plan)

	require.Len(t, res.ToolResults, 2)
	assert.Empty(t, res.Errors)
	assert.True(t, res.Complete)

	// Parameterless tool gets an empty object.
	assert.Equal(t, []string{"{}"}, listTool.inputs)
	// Region tool gets the region extracted from the instruction.
	require.Len(t, regionTool.inputs, 1)
	assert.JSONEq(t, `{"region":"Atacama"}`, regionTool.inputs[0])

	assert.True(t, plan.IsComplete())
	assert.Contains(t, res.Answer, "**Goal:** Communes of Atacama")
	assert.Contains(t, res.Answer, "**Step 1: List all regions**")
	assert.Contains(t, res.Answer, `{"regions":["Atacama"],"count":1}`)

	// tool start and end events for both steps
	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, callbacks.EventToolStart, events[0].Type)
	assert.Equal(t, callbacks.EventToolEnd, events[3].Type)
}

func Test_Execute_ReasoningContext(t *testing.T) {
	t.Parallel()

	listTool := &fakeTool{name: "list_regions", output: "sixteen regions"}
	reasoner := &fakeReasoner{fakeTool: fakeTool{name: "reasoning_agent", output: "summary text"}}

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(listTool, tools.Info{Keywords: []string{"regions"}}))
	require.NoError(t, reg.Register(reasoner, tools.Info{Keywords: []string{"reasoning", "summarize"}}))
	require.NoError(t, reg.SetDefault("reasoning_agent"))

	e := executor.New(reg)
	plan := &planner.Plan{
		Goal: "Summarize regions",
		Steps: []planner.Step{
			step("List all regions", "list_regions"),
			step("Summarize the results", "reasoning_agent"),
		},
	}
	res := e.Execute(context.Background(), plan)

	require.Empty(t, res.Errors)
	// The reasoner received the completed first step as context.
	require.Len(t, reasoner.current, 1)
	first, ok := reasoner.current[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sixteen regions", first["result"])
	assert.Equal(t, []any{"sixteen regions"}, reasoner.partial)
	assert.Equal(t, "summary text", res.ToolResults[1].Result)
}

func Test_Execute_SubstitutesUnknownTool(t *testing.T) {
	t.Parallel()

	reasoner := &fakeReasoner{fakeTool: fakeTool{name: "reasoning_agent", output: "thought"}}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(reasoner, tools.Info{Keywords: []string{"reasoning"}}))
	require.NoError(t, reg.SetDefault("reasoning_agent"))

	e := executor.New(reg)
	plan := &planner.Plan{
		Steps: []planner.Step{step("Do something clever", "magic_tool")},
	}
	res := e.Execute(context.Background(), plan)

	require.Empty(t, res.Errors)
	assert.Equal(t, "reasoning_agent", plan.Steps[0].SuggestedTool)
	assert.Equal(t, "thought", res.ToolResults[0].Result)
}

func Test_Execute_ErrorCap(t *testing.T) {
	t.Parallel()

	failing := &fakeTool{name: "list_regions", err: errors.New("boom")}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(failing, tools.Info{Keywords: []string{"regions"}}))

	var steps []planner.Step
	for i := 0; i < 6; i++ {
		steps = append(steps, step("List regions", "list_regions"))
	}
	e := executor.New(reg)
	res := e.Execute(context.Background(), &planner.Plan{Goal: "g", Steps: steps})

	// Execution stops once more than MaxErrors failures accumulate.
	assert.Len(t, res.Errors, executor.MaxErrors+1)
	assert.Len(t, res.ToolResults, executor.MaxErrors+1)
	assert.True(t, res.Complete)
	assert.Contains(t, res.Errors[0], "Step 1 failed: boom")
	assert.Contains(t, res.Plan.Steps[0].Result, "Error: boom")
}

func Test_Execute_MissingRegion(t *testing.T) {
	t.Parallel()

	regionTool := &fakeTool{name: "list_communes_in_region", paramType: regionInput{}, output: "unused"}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(regionTool, tools.Info{Keywords: []string{"communes"}}))

	e := executor.New(reg)
	plan := &planner.Plan{
		Steps: []planner.Step{step("List communes", "list_communes_in_region")},
	}
	res := e.Execute(context.Background(), plan)

	// The step completes with an explanatory result, not an error.
	require.Empty(t, res.Errors)
	assert.Empty(t, regionTool.inputs)
	assert.Contains(t, res.ToolResults[0].Result, "Could not extract region parameter")
	assert.True(t, plan.Steps[0].IsComplete)
}

func Test_ExtractRegion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		instruction string
		exp         string
	}{
		{"List communes region: Atacama", "Atacama"},
		{"Listar comunas región: Antofagasta", "Antofagasta"},
		{"Listar los proyectos para la Región de Coquimbo", "Región de Coquimbo"},
		{"comunas", ""},
		{"en X", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.exp, executor.ExtractRegion(tc.instruction), tc.instruction)
	}
}

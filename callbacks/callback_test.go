package callbacks_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/callbacks"
	"github.com/nviro-labs/pathway/pkg/llms"
)

type fakeAgent struct{}

func (a *fakeAgent) Name() string        { return "Regions" }
func (a *fakeAgent) Description() string { return "Answers region questions." }
func (a *fakeAgent) FormatPrompt(_ map[string]any) (llms.PromptValue, error) {
	return nil, nil
}
func (a *fakeAgent) GetPromptInputVariables() []string { return nil }
func (a *fakeAgent) Call(_ context.Context, _ *assistants.CallInput) (*llms.ContentResponse, error) {
	return nil, nil
}

type fakeTool struct{}

func (t *fakeTool) Name() string                   { return "list_regions" }
func (t *fakeTool) Description() string            { return "List all regions." }
func (t *fakeTool) Parameters() *jsonschema.Schema { return nil }
func (t *fakeTool) Call(_ context.Context, input string) (string, error) {
	return input, nil
}

func Test_Printer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := callbacks.NewPrinter(&buf, callbacks.ModeVerbose)
	ctx := context.Background()
	agent := &fakeAgent{}
	tool := &fakeTool{}

	p.OnAssistantStart(ctx, agent, "How many regions?")
	p.OnToolStart(ctx, tool, agent.Name(), "{}")
	p.OnToolEnd(ctx, tool, agent.Name(), "{}", `{"regions":[]}`)
	p.OnToolError(ctx, tool, agent.Name(), "{}", errors.New("boom"))
	p.OnAssistantEnd(ctx, agent, "How many regions?", &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "16 regions."}},
	}, nil)

	out := buf.String()
	assert.Contains(t, out, "Agent Start: Regions")
	assert.Contains(t, out, "Tool Start: list_regions (Regions)")
	assert.Contains(t, out, `Output: {"regions":[]}`)
	assert.Contains(t, out, "Tool Error: list_regions (Regions): boom")
	assert.Contains(t, out, "16 regions.")
}

func Test_FanoutRecorder(t *testing.T) {
	t.Parallel()

	rec := callbacks.NewRecorder()
	var buf bytes.Buffer
	fan := callbacks.NewFanout(rec)
	fan.Add(callbacks.NewPrinter(&buf, callbacks.ModeDefault))

	ctx := context.Background()
	agent := &fakeAgent{}

	fan.OnAssistantStart(ctx, agent, "question")
	fan.OnToolNotFound(ctx, agent, "list_planets")
	fan.OnAssistantError(ctx, agent, "question", errors.New("failed"), nil)

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, callbacks.EventAgentStart, events[0].Type)
	assert.Equal(t, callbacks.EventToolNotFound, events[1].Type)
	assert.Equal(t, "list_planets", events[1].Tool)
	assert.Equal(t, callbacks.EventAgentError, events[2].Type)
	assert.Equal(t, "failed", events[2].Detail)

	assert.Contains(t, buf.String(), "Tool Not Found: list_planets")
}

func Test_RecorderSink(t *testing.T) {
	t.Parallel()

	var seen []callbacks.EventType
	rec := callbacks.NewRecorder().WithSink(func(ev callbacks.Event) {
		seen = append(seen, ev.Type)
	})

	ctx := context.Background()
	agent := &fakeAgent{}
	rec.OnAssistantStart(ctx, agent, "q")
	rec.OnAssistantEnd(ctx, agent, "q", &llms.ContentResponse{}, nil)

	assert.Equal(t, []callbacks.EventType{callbacks.EventAgentStart, callbacks.EventAgentEnd}, seen)

	rec.Reset()
	assert.Empty(t, rec.Events())
}

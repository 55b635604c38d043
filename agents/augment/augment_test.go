package augment_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/agents/augment"
	"github.com/nviro-labs/pathway/fewshots"
	"github.com/nviro-labs/pathway/pkg/llms"
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

func Test_Augment(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{
			textResponse(`{"queries":["proyectos en Atacama","Proyectos en Atacama","mineras en la región de Atacama"]}`),
		},
	}
	ag := augment.New(model)

	variants := ag.Augment(context.Background(), "proyectos en Atacama")
	assert.Equal(t, []string{
		"proyectos en Atacama",
		"mineras en la región de Atacama",
	}, variants)
}

func Test_Augment_Fallback(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("throttled")}
	ag := augment.New(model)

	variants := ag.Augment(context.Background(), "cuantas regiones hay")
	assert.Equal(t, []string{"cuantas regiones hay"}, variants)
}

func Test_Augment_EmptyList(t *testing.T) {
	t.Parallel()

	model := &fakeModel{
		responses: []*llms.ContentResponse{textResponse(`{"queries":["  ", ""]}`)},
	}
	ag := augment.New(model)

	variants := ag.Augment(context.Background(), "original")
	assert.Equal(t, []string{"original"}, variants)
}

func Test_Augment_FewShots(t *testing.T) {
	t.Parallel()

	set, err := fewshots.Load([]byte(`
- input: "proyectos en Calama"
  output: "proyectos ubicados en la comuna de Calama"
`), "")
	require.NoError(t, err)

	model := &fakeModel{
		responses: []*llms.ContentResponse{textResponse(`{"queries":["proyectos en Calama"]}`)},
	}
	ag := augment.New(model, augment.WithFewShots(set, 1))

	_ = ag.Augment(context.Background(), "proyectos en Calama")

	// Example pair precedes the user question in the request.
	require.Len(t, model.requests, 1)
	sent := model.requests[0]
	require.GreaterOrEqual(t, len(sent), 3)
	assert.Equal(t, llms.RoleHuman, sent[1].Role)
	assert.Contains(t, sent[1].GetContent(), "proyectos en Calama")
	assert.Equal(t, llms.RoleAI, sent[2].Role)
}

func Test_Normalize(t *testing.T) {
	t.Parallel()

	g := augment.GeneratedQueries{Queries: []string{"` A `", "a", "", "B"}}
	assert.Equal(t, []string{"A", "B"}, g.Normalize())
}

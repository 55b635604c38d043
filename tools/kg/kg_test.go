package kg_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/tools"
	"github.com/nviro-labs/pathway/tools/kg"
)

type fakeQuerier struct {
	results [][]map[string]any
	errs    []error
	queries []string
	params  []map[string]any
}

func (f *fakeQuerier) ReadQuery(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	idx := len(f.queries)
	f.queries = append(f.queries, cypher)
	f.params = append(f.params, params)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return nil, nil
}

func rows(col string, names ...string) []map[string]any {
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]any{col: n})
	}
	return out
}

func Test_RegionsTool(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{results: [][]map[string]any{rows("name", "Antofagasta", "Atacama", "Coquimbo")}}
	tool := kg.NewRegionsTool(q)

	out, err := tool.Call(context.Background(), "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"regions":["Antofagasta","Atacama","Coquimbo"],"count":3}`, out)
	assert.Contains(t, q.queries[0], "MATCH (r:Region)")
}

func Test_RegionsTool_QueryError(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{errs: []error{errors.New("connection refused")}}
	tool := kg.NewRegionsTool(q)

	out, err := tool.Call(context.Background(), "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"connection refused"}`, out)
}

func Test_CommunesTool(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{results: [][]map[string]any{rows("name", "Calama", "Tocopilla")}}
	tool := kg.NewCommunesTool(q)

	out, err := tool.Call(context.Background(), "{}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"communes":["Calama","Tocopilla"],"count":2}`, out)
}

func Test_CommunesInRegionTool(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{results: [][]map[string]any{rows("name", "Copiapó", "Vallenar")}}
	tool := kg.NewCommunesInRegionTool(q)

	out, err := tool.Call(context.Background(), `{"region": "Atacama"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"region":"Atacama","communes":["Copiapó","Vallenar"],"count":2}`, out)
	assert.Equal(t, map[string]any{"region": "Atacama"}, q.params[0])
}

func Test_CommunesInRegionTool_EmptyRegion(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	tool := kg.NewCommunesInRegionTool(q)

	out, err := tool.Call(context.Background(), `{"region": ""}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"'region' must be a non-empty string"}`, out)
	assert.Empty(t, q.queries)

	out, err = tool.Call(context.Background(), "not json")
	require.NoError(t, err)
	assert.Contains(t, out, "non-empty string")
}

func Test_ProjectsByCommuneTool(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{results: [][]map[string]any{{
		{"project_name": "Parque Solar B", "commune_name": "Tierra Amarilla"},
		{"project_name": "Parque Solar A", "commune_name": "Copiapó"},
		{"project_name": "Parque Solar A", "commune_name": "Copiapó"},
	}}}
	tool := kg.NewProjectsByCommuneTool(q)

	res, err := tool.Run(context.Background(), &kg.RegionRequest{Region: "Atacama"})
	require.NoError(t, err)

	// Deduped and sorted by commune then project.
	require.Len(t, res.Projects, 2)
	assert.Equal(t, "Copiapó", res.Projects[0].Commune)
	assert.Equal(t, "Parque Solar A", res.Projects[0].Project)
	assert.Equal(t, "Tierra Amarilla", res.Projects[1].Commune)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "Atacama", res.Region)
}

func Test_RegisterAll(t *testing.T) {
	t.Parallel()

	reg := tools.NewRegistry()
	require.NoError(t, kg.RegisterAll(reg, &fakeQuerier{}))

	assert.Equal(t, []string{
		"list_regions",
		"list_communes",
		"list_communes_in_region",
		"list_projects_by_commune",
	}, reg.Names())

	info, ok := reg.GetInfo("list_projects_by_commune")
	require.True(t, ok)
	assert.Contains(t, info.Keywords, "projects")

	tool, valid := reg.Resolve("commune_project_lister")
	require.NotNil(t, tool)
	assert.False(t, valid)
	assert.Equal(t, "list_projects_by_commune", tool.Name())
}

// Package kg provides structured tools over the knowledge graph:
// parameterised Cypher lookups returning JSON payloads.
package kg

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	"github.com/nviro-labs/pathway/graph"
	"github.com/nviro-labs/pathway/pkg/llmutils"
	"github.com/nviro-labs/pathway/pkg/schema"
	"github.com/nviro-labs/pathway/tools"
)

// EmptyRequest is the input of parameterless lookup tools.
type EmptyRequest struct{}

func (EmptyRequest) GetContent() string { return "" }

// RegionRequest is the input of region-scoped lookup tools.
type RegionRequest struct {
	Region string `json:"region" yaml:"region" jsonschema:"title=Region,description=Exact region name to match."`
}

func (r RegionRequest) GetContent() string { return r.Region }

// RegionsResult lists the unique region names.
type RegionsResult struct {
	Regions []string `json:"regions"`
	Count   int      `json:"count"`
}

// CommunesResult lists unique commune names, scoped to a region when set.
type CommunesResult struct {
	Region   string   `json:"region,omitempty"`
	Communes []string `json:"communes"`
	Count    int      `json:"count"`
}

// ProjectCommune is a project together with its commune.
type ProjectCommune struct {
	Project string `json:"project"`
	Commune string `json:"commune"`
}

// ProjectsResult lists projects with their communes for a region.
type ProjectsResult struct {
	Region   string           `json:"region"`
	Projects []ProjectCommune `json:"projects"`
	Count    int              `json:"count"`
}

// errorJSON formats a tool failure as an observation instead of an
// error, so a broken query never aborts a plan run.
func errorJSON(err error) string {
	js, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(js)
}

func mustParams(t reflect.Type) *jsonschema.Schema {
	sc, err := schema.New(t)
	if err != nil {
		return nil
	}
	return sc.Parameters
}

// RegionsTool lists all unique region names.
type RegionsTool struct {
	querier graph.Querier
}

var _ tools.Tool[EmptyRequest, RegionsResult] = (*RegionsTool)(nil)

func NewRegionsTool(q graph.Querier) *RegionsTool {
	return &RegionsTool{querier: q}
}

func (t *RegionsTool) Name() string { return "list_regions" }
func (t *RegionsTool) Description() string {
	return "List all unique region names in the knowledge graph."
}
func (t *RegionsTool) Parameters() *jsonschema.Schema {
	return mustParams(reflect.TypeOf(EmptyRequest{}))
}

func (t *RegionsTool) Run(ctx context.Context, _ *EmptyRequest) (*RegionsResult, error) {
	const cypher = `
MATCH (r:Region)
RETURN DISTINCT r.name AS name
ORDER BY name
`
	rows, err := t.querier.ReadQuery(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	regions := namesColumn(rows, "name")
	return &RegionsResult{Regions: regions, Count: len(regions)}, nil
}

func (t *RegionsTool) Call(ctx context.Context, _ string) (string, error) {
	res, err := t.Run(ctx, nil)
	if err != nil {
		return errorJSON(err), nil
	}
	return llmutils.ToJSON(res), nil
}

// CommunesTool lists all unique commune names.
type CommunesTool struct {
	querier graph.Querier
}

var _ tools.Tool[EmptyRequest, CommunesResult] = (*CommunesTool)(nil)

func NewCommunesTool(q graph.Querier) *CommunesTool {
	return &CommunesTool{querier: q}
}

func (t *CommunesTool) Name() string { return "list_communes" }
func (t *CommunesTool) Description() string {
	return "List all unique commune names in the knowledge graph."
}
func (t *CommunesTool) Parameters() *jsonschema.Schema {
	return mustParams(reflect.TypeOf(EmptyRequest{}))
}

func (t *CommunesTool) Run(ctx context.Context, _ *EmptyRequest) (*CommunesResult, error) {
	const cypher = `
MATCH (c:Commune)
RETURN DISTINCT c.name AS name
ORDER BY name
`
	rows, err := t.querier.ReadQuery(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	communes := namesColumn(rows, "name")
	return &CommunesResult{Communes: communes, Count: len(communes)}, nil
}

func (t *CommunesTool) Call(ctx context.Context, _ string) (string, error) {
	res, err := t.Run(ctx, nil)
	if err != nil {
		return errorJSON(err), nil
	}
	return llmutils.ToJSON(res), nil
}

// CommunesInRegionTool lists the communes with projects in a region.
type CommunesInRegionTool struct {
	querier graph.Querier
}

var _ tools.Tool[RegionRequest, CommunesResult] = (*CommunesInRegionTool)(nil)

func NewCommunesInRegionTool(q graph.Querier) *CommunesInRegionTool {
	return &CommunesInRegionTool{querier: q}
}

func (t *CommunesInRegionTool) Name() string { return "list_communes_in_region" }
func (t *CommunesInRegionTool) Description() string {
	return "List all unique commune names for a given region."
}
func (t *CommunesInRegionTool) Parameters() *jsonschema.Schema {
	return mustParams(reflect.TypeOf(RegionRequest{}))
}

func (t *CommunesInRegionTool) Run(ctx context.Context, req *RegionRequest) (*CommunesResult, error) {
	if req == nil || strings.TrimSpace(req.Region) == "" {
		return nil, errors.New("'region' must be a non-empty string")
	}
	const cypher = `
MATCH (r:Region {name: $region})<-[:IN_REGION]-(p:Project)-[:IN_COMMUNE]->(c:Commune)
RETURN DISTINCT c.name AS name
ORDER BY name
`
	rows, err := t.querier.ReadQuery(ctx, cypher, map[string]any{"region": req.Region})
	if err != nil {
		return nil, err
	}
	communes := namesColumn(rows, "name")
	return &CommunesResult{Region: req.Region, Communes: communes, Count: len(communes)}, nil
}

func (t *CommunesInRegionTool) Call(ctx context.Context, input string) (string, error) {
	var req RegionRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return errorJSON(errors.New("'region' must be a non-empty string")), nil
	}
	res, err := t.Run(ctx, &req)
	if err != nil {
		return errorJSON(err), nil
	}
	return llmutils.ToJSON(res), nil
}

// ProjectsByCommuneTool lists projects with their communes for a region.
type ProjectsByCommuneTool struct {
	querier graph.Querier
}

var _ tools.Tool[RegionRequest, ProjectsResult] = (*ProjectsByCommuneTool)(nil)

func NewProjectsByCommuneTool(q graph.Querier) *ProjectsByCommuneTool {
	return &ProjectsByCommuneTool{querier: q}
}

func (t *ProjectsByCommuneTool) Name() string { return "list_projects_by_commune" }
func (t *ProjectsByCommuneTool) Description() string {
	return "List all projects with their communes for a given region."
}
func (t *ProjectsByCommuneTool) Parameters() *jsonschema.Schema {
	return mustParams(reflect.TypeOf(RegionRequest{}))
}

func (t *ProjectsByCommuneTool) Run(ctx context.Context, req *RegionRequest) (*ProjectsResult, error) {
	if req == nil || strings.TrimSpace(req.Region) == "" {
		return nil, errors.New("'region' must be a non-empty string")
	}
	const cypher = `
MATCH (p:Project)-[:IN_REGION]->(r:Region {name: $region})
MATCH (p)-[:IN_COMMUNE]->(c:Commune)
RETURN p.name AS project_name, c.name AS commune_name
`
	rows, err := t.querier.ReadQuery(ctx, cypher, map[string]any{"region": req.Region})
	if err != nil {
		return nil, err
	}

	seen := map[ProjectCommune]bool{}
	var pairs []ProjectCommune
	for _, row := range rows {
		project, _ := row["project_name"].(string)
		commune, _ := row["commune_name"].(string)
		if project == "" || commune == "" {
			continue
		}
		pc := ProjectCommune{Project: project, Commune: commune}
		if !seen[pc] {
			seen[pc] = true
			pairs = append(pairs, pc)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Commune != pairs[j].Commune {
			return pairs[i].Commune < pairs[j].Commune
		}
		return pairs[i].Project < pairs[j].Project
	})

	return &ProjectsResult{Region: req.Region, Projects: pairs, Count: len(pairs)}, nil
}

func (t *ProjectsByCommuneTool) Call(ctx context.Context, input string) (string, error) {
	var req RegionRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return errorJSON(errors.New("'region' must be a non-empty string")), nil
	}
	res, err := t.Run(ctx, &req)
	if err != nil {
		return errorJSON(err), nil
	}
	return llmutils.ToJSON(res), nil
}

func namesColumn(rows []map[string]any, col string) []string {
	var out []string
	for _, row := range rows {
		if name, ok := row[col].(string); ok && name != "" {
			out = append(out, name)
		}
	}
	return out
}

// RegisterAll registers the structured lookup tools with planning
// metadata, keywords derived the way the planner expects them.
func RegisterAll(reg *tools.Registry, q graph.Querier) error {
	entries := []struct {
		tool tools.ITool
		info tools.Info
	}{
		{
			tool: NewRegionsTool(q),
			info: tools.Info{
				UseCases: []string{"Direct data lookup", "List region names"},
				Keywords: []string{"regions", "list"},
			},
		},
		{
			tool: NewCommunesTool(q),
			info: tools.Info{
				UseCases: []string{"Direct data lookup", "List commune names"},
				Keywords: []string{"communes", "list"},
			},
		},
		{
			tool: NewCommunesInRegionTool(q),
			info: tools.Info{
				UseCases: []string{"List communes of a region", "Parameterised lookup"},
				Keywords: []string{"communes", "region", "list"},
			},
		},
		{
			tool: NewProjectsByCommuneTool(q),
			info: tools.Info{
				UseCases: []string{"List projects of a region grouped by commune", "Parameterised lookup"},
				Keywords: []string{"projects", "commune", "region", "list"},
			},
		},
	}
	for _, e := range entries {
		if err := reg.Register(e.tool, e.info); err != nil {
			return err
		}
	}
	return nil
}

package fewshots_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/fewshots"
)

const groupedYAML = `
FEW_SHOTS_CYPHER_QUERY:
  - pregunta: "proyectos en la comuna de Calama"
    cypher_query: "MATCH (p:Project)-[:IN_COMMUNE]->(c:Commune {name: 'Calama'}) RETURN p.name"
  - pregunta: "cuantas regiones hay"
    cypher_query: "MATCH (r:Region) RETURN count(r)"
  - pregunta: "cuantas regiones hay"
    cypher_query: "MATCH (r:Region) RETURN count(r)"
NOTES:
  - "not an example"
`

const sequentialYAML = `
- input: "list the regions"
- output: "use the list_regions tool"
- input: "projects in Atacama"
- output: "use the list_projects_by_commune tool"
`

func Test_LoadGrouped(t *testing.T) {
	t.Parallel()

	set, err := fewshots.Load([]byte(groupedYAML), "")
	require.NoError(t, err)

	// Duplicates removed, NOTES group ignored.
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "proyectos en la comuna de Calama", set.Examples()[0].Input)
	assert.Contains(t, set.Examples()[0].Output, "IN_COMMUNE")
}

func Test_LoadGroupName(t *testing.T) {
	t.Parallel()

	set, err := fewshots.Load([]byte(groupedYAML), "FEW_SHOTS_CYPHER_QUERY")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	_, err = fewshots.Load([]byte(groupedYAML), "MISSING")
	assert.EqualError(t, err, "examples group not found: MISSING")
}

func Test_LoadSequentialPairs(t *testing.T) {
	t.Parallel()

	set, err := fewshots.Load([]byte(sequentialYAML), "")
	require.NoError(t, err)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, "list the regions", set.Examples()[0].Input)
	assert.Equal(t, "use the list_regions tool", set.Examples()[0].Output)
}

func Test_LoadInvalid(t *testing.T) {
	t.Parallel()

	_, err := fewshots.Load([]byte(`"just a string"`), "")
	assert.Error(t, err)

	_, err = fewshots.Load([]byte("EMPTY:\n  key: value\n"), "")
	assert.Error(t, err)
}

func Test_Select(t *testing.T) {
	t.Parallel()

	set, err := fewshots.Load([]byte(groupedYAML), "")
	require.NoError(t, err)

	selected := set.Select("lista los proyectos de la comuna", 1)
	require.Len(t, selected, 1)
	assert.Contains(t, selected[0].Input, "comuna")

	// k capped at the set size; no match falls back to document order.
	selected = set.Select("completely unrelated", 10)
	assert.Len(t, selected, 2)
}

func Test_FewShot(t *testing.T) {
	t.Parallel()

	set, err := fewshots.Load([]byte(groupedYAML), "")
	require.NoError(t, err)

	shots := set.FewShot("cuantas regiones", 1)
	require.Len(t, shots, 1)
	assert.Equal(t, "cuantas regiones hay", shots[0].Prompt)
}

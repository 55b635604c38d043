package graph

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
)

const (
	// DefaultVectorIndex is the vector index over chunk embeddings.
	DefaultVectorIndex = "chunkEmbedding"
	// DefaultFulltextIndex is the fulltext index over chunk text.
	DefaultFulltextIndex = "chunkFulltext"
	// DefaultTopK is the default number of chunks returned per search.
	DefaultTopK = 5
)

// fulltextQuery expands each matched chunk with its project context so
// the answer agent sees where the text came from.
const fulltextQuery = `
CALL db.index.fulltext.queryNodes($index, $query, {limit: $k})
YIELD node, score
MATCH (node)<-[:HAS_CHUNK]-(project:Project)
OPTIONAL MATCH (project)-[:IN_REGION]->(region:Region)
OPTIONAL MATCH (project)-[:IN_COMMUNE]->(commune:Commune)
WITH node, score, project,
     collect(DISTINCT region.name) AS regions,
     collect(DISTINCT commune.name) AS communes
RETURN elementId(node) AS chunk_id,
       node.text AS text,
       coalesce(node.h1, '') AS section_title,
       score,
       coalesce(project.name, '') AS project_name,
       regions,
       communes
ORDER BY score DESC
`

const vectorQuery = `
CALL db.index.vector.queryNodes($index, $k, $embedding)
YIELD node, score
MATCH (node)<-[:HAS_CHUNK]-(project:Project)
OPTIONAL MATCH (project)-[:IN_REGION]->(region:Region)
OPTIONAL MATCH (project)-[:IN_COMMUNE]->(commune:Commune)
WITH node, score, project,
     collect(DISTINCT region.name) AS regions,
     collect(DISTINCT commune.name) AS communes
RETURN elementId(node) AS chunk_id,
       node.text AS text,
       coalesce(node.h1, '') AS section_title,
       score,
       coalesce(project.name, '') AS project_name,
       regions,
       communes
ORDER BY score DESC
`

// Embedder produces a vector for a query string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is a scored retrieval result.
type Chunk struct {
	ID           string   `json:"chunk_id"`
	Text         string   `json:"text"`
	SectionTitle string   `json:"section_title,omitempty"`
	ProjectName  string   `json:"project_name,omitempty"`
	Regions      []string `json:"regions,omitempty"`
	Communes     []string `json:"communes,omitempty"`
	Score        float64  `json:"score"`
}

// HybridRetriever combines fulltext and vector index searches over the
// chunk nodes. Without an embedder only the fulltext leg runs.
type HybridRetriever struct {
	querier       Querier
	embedder      Embedder
	fulltextIndex string
	vectorIndex   string
	topK          int
}

func NewHybridRetriever(q Querier) *HybridRetriever {
	return &HybridRetriever{
		querier:       q,
		fulltextIndex: DefaultFulltextIndex,
		vectorIndex:   DefaultVectorIndex,
		topK:          DefaultTopK,
	}
}

// WithEmbedder enables the vector search leg.
func (r *HybridRetriever) WithEmbedder(e Embedder) *HybridRetriever {
	r.embedder = e
	return r
}

// WithIndexes overrides the index names.
func (r *HybridRetriever) WithIndexes(fulltext, vector string) *HybridRetriever {
	r.fulltextIndex = values.StringsCoalesce(fulltext, DefaultFulltextIndex)
	r.vectorIndex = values.StringsCoalesce(vector, DefaultVectorIndex)
	return r
}

// WithTopK overrides the result count per search.
func (r *HybridRetriever) WithTopK(k int) *HybridRetriever {
	if k > 0 {
		r.topK = k
	}
	return r
}

// Search runs the fulltext and, with an embedder, the vector search for
// the question. Results are merged by chunk ID, the best score wins.
func (r *HybridRetriever) Search(ctx context.Context, question string) ([]Chunk, error) {
	byID := map[string]Chunk{}

	records, err := r.querier.ReadQuery(ctx, fulltextQuery, map[string]any{
		"index": r.fulltextIndex,
		"query": question,
		"k":     r.topK,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "fulltext search failed")
	}
	mergeChunks(byID, records)

	if r.embedder != nil {
		embedding, err := r.embedder.Embed(ctx, question)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to embed question")
		}
		records, err = r.querier.ReadQuery(ctx, vectorQuery, map[string]any{
			"index":     r.vectorIndex,
			"k":         r.topK,
			"embedding": embedding,
		})
		if err != nil {
			return nil, errors.WithMessage(err, "vector search failed")
		}
		mergeChunks(byID, records)
	}

	chunks := make([]Chunk, 0, len(byID))
	for _, c := range byID {
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if len(chunks) > r.topK {
		chunks = chunks[:r.topK]
	}
	return chunks, nil
}

func mergeChunks(byID map[string]Chunk, records []map[string]any) {
	for _, rec := range records {
		rm := values.MapAny(rec)
		c := Chunk{
			ID:           rm.String("chunk_id"),
			Text:         rm.String("text"),
			SectionTitle: rm.String("section_title"),
			ProjectName:  rm.String("project_name"),
			Regions:      toStrings(rec["regions"]),
			Communes:     toStrings(rec["communes"]),
			Score:        toFloat(rec["score"]),
		}
		if prev, ok := byID[c.ID]; !ok || c.Score > prev.Score {
			byID[c.ID] = c
		}
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func toStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

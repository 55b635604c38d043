// Package graph provides read access to the Neo4j knowledge graph.
package graph

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nviro-labs/pathway/pkg/metricskey"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "graph")

// Config is the Neo4j connection configuration.
type Config struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// Querier runs read-only Cypher queries.
type Querier interface {
	ReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Client is a Neo4j driver wrapper restricted to read queries.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create Neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, errors.WithMessage(err, "failed to verify Neo4j connectivity")
	}
	logger.KV(xlog.INFO, "status", "connected", "uri", cfg.URI)
	return &Client{
		driver:   driver,
		database: cfg.Database,
	}, nil
}

// Close releases the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// write clauses rejected by ReadQuery
var writeClauses = []string{
	"CREATE", "MERGE", "DELETE", "DETACH", "SET", "REMOVE", "DROP",
}

// CheckReadOnly returns an error when the query contains a write clause.
// Model-generated Cypher must never mutate the graph.
func CheckReadOnly(cypher string) error {
	upper := strings.ToUpper(cypher)
	for _, clause := range writeClauses {
		idx := 0
		for {
			pos := strings.Index(upper[idx:], clause)
			if pos < 0 {
				break
			}
			pos += idx
			before := pos == 0 || !isWordByte(upper[pos-1])
			end := pos + len(clause)
			after := end >= len(upper) || !isWordByte(upper[end])
			if before && after {
				return errors.Newf("query contains write clause %s", clause)
			}
			idx = end
		}
	}
	return nil
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// ReadQuery executes a read-only Cypher query and returns the records as
// maps keyed by the RETURN column names.
func (c *Client) ReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if err := CheckReadOnly(cypher); err != nil {
		metricskey.StatsGraphQueriesFailed.IncrCounter(1, "neo4j")
		return nil, err
	}

	started := time.Now()
	defer metricskey.PerfGraphQuery.MeasureSince(started, "neo4j")

	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		metricskey.StatsGraphQueriesFailed.IncrCounter(1, "neo4j")
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "query_failed",
			"err", err.Error(),
		)
		return nil, errors.WithMessage(err, "failed to run Cypher query")
	}
	metricskey.StatsGraphQueriesSucceeded.IncrCounter(1, "neo4j")

	records := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		records = append(records, rec.AsMap())
	}
	return records, nil
}

// RunJSON executes a read-only query and returns the records as a JSON
// string. Errors are returned as a JSON object with an "error" key, so
// a failed query still produces a tool observation instead of aborting
// the run.
func RunJSON(ctx context.Context, q Querier, cypher string, params map[string]any) string {
	records, err := q.ReadQuery(ctx, cypher, params)
	if err != nil {
		js, _ := json.Marshal(map[string]string{"error": "ERROR: " + err.Error()})
		return string(js)
	}
	js, err := json.Marshal(records)
	if err != nil {
		errJS, _ := json.Marshal(map[string]string{"error": "ERROR: " + err.Error()})
		return string(errJS)
	}
	return string(js)
}

// Package config loads the application configuration.
package config

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"

	"github.com/nviro-labs/pathway/graph"
	"github.com/nviro-labs/pathway/llmfactory"
)

// DefaultListenAddr is used when the server section does not set one.
const DefaultListenAddr = ":8000"

type Config struct {
	// Server specifies the HTTP front end settings.
	Server ServerConfig `json:"server" yaml:"server"`
	// LLM specifies the model providers.
	LLM *llmfactory.Config `json:"llm" yaml:"llm"`
	// Graph specifies the Neo4j connection.
	Graph *graph.Config `json:"graph" yaml:"graph"`
	// Redis specifies the chat history store. Empty Addr disables Redis
	// and chat history is kept in memory.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
	// FewShots specifies example files for the prompt builders.
	FewShots FewShotsConfig `json:"few_shots,omitempty" yaml:"few_shots,omitempty"`
	// LogLevel overrides the default INFO level, TRACE|DEBUG|INFO|WARNING|ERROR.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// ServerConfig for the HTTP listener
type ServerConfig struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// RedisConfig for chat history storage. Values support ${ENV_VAR}
// expansion.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// FewShotsConfig points at YAML example files. Each file holds grouped
// or sequential input/output pairs.
type FewShotsConfig struct {
	Planner   string `json:"planner,omitempty" yaml:"planner,omitempty"`
	Cypher    string `json:"cypher,omitempty" yaml:"cypher,omitempty"`
	Questions string `json:"questions,omitempty" yaml:"questions,omitempty"`
}

// Load the configuration from file and apply defaults.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load config: %s", file)
	}
	cfg.Server.ListenAddr = values.StringsCoalesce(cfg.Server.ListenAddr, DefaultListenAddr)
	if cfg.Graph == nil {
		return nil, errors.Newf("config %s: graph section is required", file)
	}
	if cfg.LLM == nil || len(cfg.LLM.Providers) == 0 {
		return nil, errors.Newf("config %s: llm section must list at least one provider", file)
	}
	return cfg, nil
}

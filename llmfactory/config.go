package llmfactory

import (
	"github.com/effective-security/x/configloader"
)

type Config struct {
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
}

// ProviderConfig describes one model provider. Token and other values
// support ${ENV_VAR} expansion, so credentials stay in the environment.
type ProviderConfig struct {
	Name            string          `json:"name" yaml:"name"`
	Provider        string          `json:"provider" yaml:"provider"`
	Token           string          `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string          `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string        `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	Anthropic       AnthropicConfig `json:"anthropic,omitempty" yaml:"anthropic,omitempty"`
}

// AnthropicConfig specifies options for the Anthropic provider.
type AnthropicConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Package llmfactory creates model clients from configuration.
package llmfactory

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/llms/anthropic"
	"github.com/nviro-labs/pathway/pkg/llms/bedrock"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "llmfactory")

type Factory interface {
	DefaultModel() (llms.Model, error)
	ModelByProvider(typ string) (llms.Model, error)
	ModelByName(name string) (llms.Model, error)
}

// Load returns a factory from the config file at the given location.
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	byProvider map[string]llms.Model
	byName     map[string]llms.Model
	lock       sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	return &factory{
		cfg:        cfg,
		byProvider: make(map[string]llms.Model),
		byName:     make(map[string]llms.Model),
	}
}

// NewLLM creates a model client from a single provider config.
func NewLLM(cfg *ProviderConfig) (llms.Model, error) {
	switch strings.ToUpper(cfg.Provider) {
	case string(llms.ProviderBedrock):
		var opts []bedrock.Option
		if cfg.DefaultModel != "" {
			opts = append(opts, bedrock.WithModel(cfg.DefaultModel))
		}
		return bedrock.New(opts...)
	case string(llms.ProviderAnthropic):
		opts := []anthropic.Option{
			anthropic.WithModel(cfg.DefaultModel),
		}
		if cfg.Token != "" {
			opts = append(opts, anthropic.WithToken(cfg.Token))
		}
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		return anthropic.New(opts...)
	default:
		return nil, errors.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// DefaultModel returns the model of the first configured provider.
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 {
		return nil, errors.New("no providers configured")
	}
	return f.ModelByName(f.cfg.Providers[0].Name)
}

func (f *factory) ModelByProvider(typ string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	typ = strings.ToUpper(typ)
	if client, ok := f.byProvider[typ]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if strings.ToUpper(cfg.Provider) == typ {
			model, err := NewLLM(cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"provider", cfg.Provider,
				"model", cfg.DefaultModel,
				"name", cfg.Name)

			f.byProvider[typ] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", typ)
}

func (f *factory) ModelByName(name string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byName[name]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if cfg.Name == name {
			model, err := NewLLM(cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"provider", cfg.Provider,
				"model", cfg.DefaultModel,
				"name", cfg.Name)

			f.byName[name] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for name: %s", name)
}

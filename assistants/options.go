package assistants

import (
	"context"

	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/encoding"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/schema"
	"github.com/nviro-labs/pathway/store"
)

// Option is a function that can be used to modify the Assistant Config.
type Option func(*Config)

type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// StopWords is a list of words to stop on in an LLM call.
	StopWords    []string
	stopWordsSet bool

	// TopP is the cumulative probability for top-p sampling.
	TopP    float64
	toppSet bool

	// Tools is a list of tool definitions passed to the LLM.
	Tools    []llms.Tool
	toolsSet bool

	// ToolChoice is "none", "auto" (the default), or a specific tool.
	ToolChoice    any
	toolChoiceSet bool

	JSONMode bool

	// ResponseFormat is set when the provider supports schema-constrained
	// responses. Otherwise the output schema goes into the system prompt.
	ResponseFormat *schema.ResponseFormat

	// StreamingFunc is called for each chunk of a streaming response.
	// Return an error to stop streaming early.
	StreamingFunc func(ctx context.Context, chunk []byte) error

	//
	// Below are options for the agent run, not for the LLM call.
	//

	// CallbackHandler receives run lifecycle events.
	CallbackHandler Callback

	// Store persists the chat message history. No history is kept when nil.
	Store store.MessageStore

	PromptInput map[string]any
	Examples    chatmodel.FewShotExamples
	Mode        encoding.Mode

	// MaxMessages caps the message history sent in a single run.
	MaxMessages int
	// MaxToolCalls caps the total tool calls in a single run.
	MaxToolCalls int
	// MaxLength caps the total bytes sent in a single run.
	MaxLength int

	// IsGeneric marks run messages with the generic role, for agents
	// whose turns are scratch notes of a supervisor conversation.
	IsGeneric bool

	SkipMessageHistory bool
	SkipToolHistory    bool
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Mode:        encoding.ModeDefault,
		MaxMessages: DefaultMaxMessages,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the given options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMode is an option that allows to specify the encoding mode.
func WithMode(mode encoding.Mode) Option {
	return func(o *Config) {
		o.Mode = mode
		o.JSONMode = mode == encoding.ModeJSON ||
			mode == encoding.ModeJSONSchema ||
			mode == encoding.ModeJSONSchemaStrict
	}
}

// WithExamples is an option that allows to specify the few-shot examples for the system prompt.
func WithExamples(examples chatmodel.FewShotExamples) Option {
	return func(o *Config) {
		o.Examples = examples
	}
}

// WithStore sets the message history store.
func WithStore(s store.MessageStore) Option {
	return func(o *Config) {
		o.Store = s
	}
}

// WithSkipMessageHistory is an option that allows to skip adding messages to history.
func WithSkipMessageHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipMessageHistory = skip
	}
}

// WithSkipToolHistory is an option that allows to skip adding tool calls to history.
func WithSkipToolHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipToolHistory = skip
	}
}

// WithGeneric marks run messages with the generic role.
func WithGeneric(generic bool) Option {
	return func(o *Config) {
		o.IsGeneric = generic
	}
}

// WithPromptInput is an option that allows the user to specify the system prompt input.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithJSONMode is an option that allows the user to specify whether to use JSON mode.
func WithJSONMode(jsonMode bool) Option {
	return func(o *Config) {
		o.JSONMode = jsonMode
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopP will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithStopWords is an option for setting the stop words for LLM.Call.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
		o.stopWordsSet = true
	}
}

// WithStreamingFunc is an option that allows streaming responses.
func WithStreamingFunc(streamingFunc func(ctx context.Context, chunk []byte) error) Option {
	return func(o *Config) {
		o.StreamingFunc = streamingFunc
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithMaxMessages caps the message history sent in a single run.
func WithMaxMessages(n int) Option {
	return func(o *Config) {
		o.MaxMessages = n
	}
}

// WithMaxToolCalls caps the total tool calls in a single run.
func WithMaxToolCalls(n int) Option {
	return func(o *Config) {
		o.MaxToolCalls = n
	}
}

// WithMaxLength caps the total bytes sent in a single run.
func WithMaxLength(n int) Option {
	return func(o *Config) {
		o.MaxLength = n
	}
}

// WithTools is an option for LLM.Call.
func WithTools(tools []llms.Tool) Option {
	return func(o *Config) {
		o.Tools = tools
		o.toolsSet = true
	}
}

// WithTool is an option for LLM.Call.
func WithTool(tool llms.Tool) Option {
	return func(o *Config) {
		o.Tools = append(o.Tools, tool)
		o.toolsSet = true
	}
}

// WithToolChoice is an option for LLM.Call.
func WithToolChoice(choice any) Option {
	return func(o *Config) {
		o.ToolChoice = choice
		o.toolChoiceSet = true
	}
}

func (c *Config) GetCallOptions(options ...Option) []llms.CallOption {
	cfg := c.Apply(options...)

	var callOpts []llms.CallOption
	if cfg.modelSet {
		callOpts = append(callOpts, llms.WithModel(cfg.Model))
	}
	if cfg.maxTokensSet {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.temperatureSet {
		callOpts = append(callOpts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.stopWordsSet {
		callOpts = append(callOpts, llms.WithStopWords(cfg.StopWords))
	}
	if cfg.toppSet {
		callOpts = append(callOpts, llms.WithTopP(cfg.TopP))
	}
	if cfg.toolsSet {
		callOpts = append(callOpts, llms.WithTools(cfg.Tools))
	}
	if cfg.toolChoiceSet {
		callOpts = append(callOpts, llms.WithToolChoice(cfg.ToolChoice))
	}
	if cfg.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}
	if cfg.ResponseFormat != nil {
		callOpts = append(callOpts, llms.WithResponseFormat(cfg.ResponseFormat))
	}
	if cfg.StreamingFunc != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(cfg.StreamingFunc))
	}

	return callOpts
}

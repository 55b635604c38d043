package llms

import (
	"context"
)

// ProviderType is the type of LLM provider.
type ProviderType string

const (
	// ProviderBedrock is AWS Bedrock, the default deployment target.
	ProviderBedrock ProviderType = "BEDROCK"
	// ProviderAnthropic is the Anthropic API.
	ProviderAnthropic ProviderType = "ANTHROPIC"
)

// Model is the interface chat models implement.
type Model interface {
	// GetName returns the configured model identifier.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GenerateContent asks the model to generate a completion from a
	// sequence of messages.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// CapabilityText is basic text or chat generation.
	CapabilityText Capability = 1 << iota

	// CapabilityJSONResponse indicates support for JSON response mode.
	CapabilityJSONResponse
	// CapabilityJSONSchema indicates support for schema-constrained responses.
	CapabilityJSONSchema

	// CapabilityFunctionCalling indicates support for tool/function calling.
	CapabilityFunctionCalling
	// CapabilityMultiToolCalling indicates support for parallel tool calls.
	CapabilityMultiToolCalling

	// CapabilitySystemPrompt indicates support for a system prompt.
	CapabilitySystemPrompt
)

var providerCapabilities = map[ProviderType]Capability{
	// Bedrock is used with Anthropic models via the Converse API.
	ProviderBedrock: CapabilityText |
		CapabilityJSONResponse |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt,

	ProviderAnthropic: CapabilityText |
		CapabilityJSONResponse |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt,
}

// ProviderCapabilities returns the capability mask for a provider.
func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

// Supports reports whether the provider supports the given capability.
func (p ProviderType) Supports(c Capability) bool {
	return ProviderCapabilities(p)&c != 0
}

// PromptValue is the interface that all prompt values must implement.
type PromptValue interface {
	String() string
	Messages() []Message
}

package bedrock

import (
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type options struct {
	modelID string
	client  *bedrockruntime.Client
}

// Option is an option for the Bedrock LLM.
type Option func(*options)

// WithModel allows setting a custom model ID or inference profile ID.
func WithModel(modelID string) Option {
	return func(o *options) {
		o.modelID = modelID
	}
}

// WithClient allows setting a custom bedrockruntime.Client.
func WithClient(client *bedrockruntime.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

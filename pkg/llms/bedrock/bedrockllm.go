// Package bedrock implements the Model interface over the AWS Bedrock
// Converse API.
package bedrock

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"

	"github.com/nviro-labs/pathway/pkg/llms"
)

const defaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// LLM is a Bedrock Converse implementation of the Model interface.
type LLM struct {
	modelID string
	client  *bedrockruntime.Client
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Bedrock LLM. Without WithClient the default AWS
// config chain is used, so credentials and region come from the
// environment.
func New(opts ...Option) (*LLM, error) {
	options := &options{
		modelID: defaultModel,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load AWS config")
		}
		options.client = bedrockruntime.NewFromConfig(cfg)
	}

	return &LLM{
		modelID: options.modelID,
		client:  options.client,
	}, nil
}

// GetName implements the Model interface.
func (l *LLM) GetName() string {
	return l.modelID
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// GenerateContent implements the Model interface.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: l.modelID,
	}
	for _, opt := range options {
		opt(&opts)
	}

	system, converseMsgs, err := processMessages(messages)
	if err != nil {
		return nil, err
	}

	toolConfig, err := toToolConfiguration(opts.Tools)
	if err != nil {
		return nil, err
	}

	inference := &types.InferenceConfiguration{}
	if opts.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		inference.Temperature = aws.Float32(float32(opts.Temperature))
	}
	if opts.TopP > 0 {
		inference.TopP = aws.Float32(float32(opts.TopP))
	}
	if len(opts.StopWords) > 0 {
		inference.StopSequences = opts.StopWords
	}

	if opts.StreamingFunc != nil {
		return l.converseStream(ctx, &bedrockruntime.ConverseStreamInput{
			ModelId:         aws.String(opts.Model),
			System:          system,
			Messages:        converseMsgs,
			InferenceConfig: inference,
			ToolConfig:      toolConfig,
		}, opts.StreamingFunc)
	}

	resp, err := l.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(opts.Model),
		System:          system,
		Messages:        converseMsgs,
		InferenceConfig: inference,
		ToolConfig:      toolConfig,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "bedrock: converse failed")
	}

	return toContentResponse(resp)
}

func processMessages(messages []llms.Message) ([]types.SystemContentBlock, []types.Message, error) {
	var system []types.SystemContentBlock
	var out []types.Message

	for _, m := range messages {
		if m.Role == llms.RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{
				Value: m.GetContent(),
			})
			continue
		}

		role, err := toConversationRole(m.Role)
		if err != nil {
			return nil, nil, err
		}

		var blocks []types.ContentBlock
		for _, part := range m.Parts {
			switch part := part.(type) {
			case llms.TextContent:
				blocks = append(blocks, &types.ContentBlockMemberText{
					Value: part.Text,
				})
			case llms.ToolCall:
				var input map[string]any
				if part.FunctionCall.Arguments != "" {
					if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
						return nil, nil, errors.WithMessage(err, "bedrock: invalid tool call arguments")
					}
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(part.ID),
						Name:      aws.String(part.FunctionCall.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			case llms.ToolCallResponse:
				blocks = append(blocks, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(part.ToolCallID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{
								Value: part.Content,
							},
						},
					},
				})
			default:
				return nil, nil, errors.New("bedrock: unsupported content part")
			}
		}

		out = append(out, types.Message{
			Role:    role,
			Content: blocks,
		})
	}
	return system, out, nil
}

func toConversationRole(role llms.Role) (types.ConversationRole, error) {
	switch role {
	case llms.RoleHuman, llms.RoleGeneric:
		return types.ConversationRoleUser, nil
	case llms.RoleAI:
		return types.ConversationRoleAssistant, nil
	case llms.RoleTool:
		// tool results travel in a user message
		return types.ConversationRoleUser, nil
	default:
		return "", errors.Newf("bedrock: unsupported role: %s", role)
	}
}

func toToolConfiguration(tools []llms.Tool) (*types.ToolConfiguration, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	cfg := &types.ToolConfiguration{}
	for _, tool := range tools {
		if tool.Function == nil {
			return nil, errors.New("bedrock: tool function definition is required")
		}
		var schemaMap map[string]any
		if tool.Function.Parameters != nil {
			bs, err := json.Marshal(tool.Function.Parameters)
			if err != nil {
				return nil, errors.WithMessage(err, "bedrock: failed to marshal tool schema")
			}
			if err := json.Unmarshal(bs, &schemaMap); err != nil {
				return nil, errors.WithMessage(err, "bedrock: failed to convert tool schema")
			}
		}
		cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Function.Name),
				Description: aws.String(tool.Function.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schemaMap),
				},
			},
		})
	}
	return cfg, nil
}

func toContentResponse(resp *bedrockruntime.ConverseOutput) (*llms.ContentResponse, error) {
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock: unexpected converse output")
	}

	choice := &llms.ContentChoice{
		StopReason:     string(resp.StopReason),
		GenerationInfo: map[string]any{},
	}
	if resp.Usage != nil {
		choice.GenerationInfo["InputTokens"] = int64(aws.ToInt32(resp.Usage.InputTokens))
		choice.GenerationInfo["OutputTokens"] = int64(aws.ToInt32(resp.Usage.OutputTokens))
		choice.GenerationInfo["TotalTokens"] = int64(aws.ToInt32(resp.Usage.TotalTokens))
	}

	for _, block := range msg.Value.Content {
		switch block := block.(type) {
		case *types.ContentBlockMemberText:
			choice.Content += block.Value
		case *types.ContentBlockMemberToolUse:
			args := "{}"
			if block.Value.Input != nil {
				bs, err := block.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, errors.WithMessage(err, "bedrock: failed to read tool input")
				}
				args = string(bs)
			}
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   aws.ToString(block.Value.ToolUseId),
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      aws.ToString(block.Value.Name),
					Arguments: args,
				},
			})
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{choice},
	}, nil
}

func (l *LLM) converseStream(ctx context.Context, input *bedrockruntime.ConverseStreamInput, streamingFunc func(ctx context.Context, chunk []byte) error) (*llms.ContentResponse, error) {
	resp, err := l.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, errors.WithMessage(err, "bedrock: converse stream failed")
	}
	stream := resp.GetStream()
	defer stream.Close()

	choice := &llms.ContentChoice{
		GenerationInfo: map[string]any{},
	}

	type toolUse struct {
		id   string
		name string
		args string
	}
	var currentTool *toolUse

	flushTool := func() {
		if currentTool == nil {
			return
		}
		args := currentTool.args
		if args == "" {
			args = "{}"
		}
		choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
			ID:   currentTool.id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      currentTool.name,
				Arguments: args,
			},
		})
		currentTool = nil
	}

	for event := range stream.Events() {
		switch event := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if start, ok := event.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				currentTool = &toolUse{
					id:   aws.ToString(start.Value.ToolUseId),
					name: aws.ToString(start.Value.Name),
				}
			}
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := event.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				choice.Content += delta.Value
				if err := streamingFunc(ctx, []byte(delta.Value)); err != nil {
					return nil, err
				}
			case *types.ContentBlockDeltaMemberToolUse:
				if currentTool != nil {
					currentTool.args += aws.ToString(delta.Value.Input)
				}
			}
		case *types.ConverseStreamOutputMemberContentBlockStop:
			flushTool()
		case *types.ConverseStreamOutputMemberMessageStop:
			choice.StopReason = string(event.Value.StopReason)
		case *types.ConverseStreamOutputMemberMetadata:
			if event.Value.Usage != nil {
				choice.GenerationInfo["InputTokens"] = int64(aws.ToInt32(event.Value.Usage.InputTokens))
				choice.GenerationInfo["OutputTokens"] = int64(aws.ToInt32(event.Value.Usage.OutputTokens))
				choice.GenerationInfo["TotalTokens"] = int64(aws.ToInt32(event.Value.Usage.TotalTokens))
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.WithMessage(err, "bedrock: stream error")
	}
	flushTool()

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{choice},
	}, nil
}

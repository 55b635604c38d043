package bedrock

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/schema"
)

func TestProcessMessages(t *testing.T) {
	t.Parallel()

	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You answer questions about projects."),
		llms.MessageFromTextParts(llms.RoleHuman, "List communes in Atacama."),
		llms.MessageFromToolCalls(llms.RoleAI, []llms.ToolCall{
			{
				ID:   "call_1",
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      "list_communes_in_region",
					Arguments: `{"region":"Atacama"}`,
				},
			},
		}...),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "call_1",
			Name:       "list_communes_in_region",
			Content:    `{"communes":["Copiapo"]}`,
		}),
	}

	system, out, err := processMessages(msgs)
	require.NoError(t, err)
	require.Len(t, system, 1)
	require.Len(t, out, 3)

	assert.Equal(t, types.ConversationRoleUser, out[0].Role)
	assert.Equal(t, types.ConversationRoleAssistant, out[1].Role)
	assert.Equal(t, types.ConversationRoleUser, out[2].Role)

	toolUse, ok := out[1].Content[0].(*types.ContentBlockMemberToolUse)
	require.True(t, ok)
	assert.Equal(t, "call_1", aws.ToString(toolUse.Value.ToolUseId))
	assert.Equal(t, "list_communes_in_region", aws.ToString(toolUse.Value.Name))

	toolResult, ok := out[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "call_1", aws.ToString(toolResult.Value.ToolUseId))
}

func TestToToolConfiguration(t *testing.T) {
	t.Parallel()

	cfg, err := toToolConfiguration(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	params := schema.MustFromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"region": map[string]any{"type": "string"},
		},
		"required": []string{"region"},
	})
	cfg, err = toToolConfiguration([]llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "list_communes_in_region",
				Description: "List communes located in a region.",
				Parameters:  params,
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, cfg.Tools, 1)

	spec, ok := cfg.Tools[0].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, "list_communes_in_region", aws.ToString(spec.Value.Name))

	_, err = toToolConfiguration([]llms.Tool{{Type: "function"}})
	require.Error(t, err)
}

func TestToContentResponse(t *testing.T) {
	t.Parallel()

	resp := &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonToolUse,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(11),
			OutputTokens: aws.Int32(7),
			TotalTokens:  aws.Int32(18),
		},
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: "Checking the graph."},
					&types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							ToolUseId: aws.String("call_2"),
							Name:      aws.String("list_regions"),
							Input:     document.NewLazyDocument(map[string]any{}),
						},
					},
				},
			},
		},
	}

	res, err := toContentResponse(resp)
	require.NoError(t, err)
	require.Len(t, res.Choices, 1)

	choice := res.Choices[0]
	assert.Equal(t, "Checking the graph.", choice.Content)
	assert.Equal(t, string(types.StopReasonToolUse), choice.StopReason)
	assert.Equal(t, int64(18), choice.GenerationInfo["TotalTokens"])
	require.Len(t, choice.ToolCalls, 1)
	assert.Equal(t, "list_regions", choice.ToolCalls[0].FunctionCall.Name)
}

func TestProviderType(t *testing.T) {
	t.Parallel()

	llm := &LLM{modelID: defaultModel}
	assert.Equal(t, llms.ProviderBedrock, llm.GetProviderType())
	assert.Equal(t, defaultModel, llm.GetName())
}

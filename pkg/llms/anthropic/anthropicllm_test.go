package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/schema"
)

func TestNew_Validation(t *testing.T) {
	t.Setenv(TokenEnvVarName, "")

	_, err := New(WithModel("claude-sonnet-4-20250514"))
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = New(WithToken("key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")

	llm, err := New(WithToken("key"), WithModel("claude-sonnet-4-20250514"))
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", llm.GetName())
	assert.Equal(t, llms.ProviderAnthropic, llm.GetProviderType())
}

func TestProcessMessages(t *testing.T) {
	t.Parallel()

	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You answer questions about projects."),
		llms.MessageFromTextParts(llms.RoleSystem, "Use the tools when needed."),
		llms.MessageFromTextParts(llms.RoleHuman, "How many projects are in Copiapo?"),
		llms.MessageFromToolCalls(llms.RoleAI, []llms.ToolCall{
			{
				ID:   "call_1",
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      "list_projects_by_commune",
					Arguments: `{"commune":"Copiapo"}`,
				},
			},
		}...),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "call_1",
			Name:       "list_projects_by_commune",
			Content:    `{"projects":["Planta Solar"]}`,
		}),
	}

	sdkMsgs, system, err := ProcessMessages(msgs)
	require.NoError(t, err)
	assert.Equal(t, "You answer questions about projects.\nUse the tools when needed.", system)
	require.Len(t, sdkMsgs, 3)
	assert.Equal(t, "user", string(sdkMsgs[0].Role))
	assert.Equal(t, "assistant", string(sdkMsgs[1].Role))
	assert.Equal(t, "user", string(sdkMsgs[2].Role))
}

func TestProcessMessages_InvalidToolArgs(t *testing.T) {
	t.Parallel()

	msgs := []llms.Message{
		llms.MessageFromToolCalls(llms.RoleAI, []llms.ToolCall{
			{
				ID:           "call_1",
				FunctionCall: &llms.FunctionCall{Name: "list_regions", Arguments: "{bad"},
			},
		}...),
	}
	_, _, err := ProcessMessages(msgs)
	require.Error(t, err)
}

func TestToTools(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ToTools(nil))

	params := schema.MustFromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"commune": map[string]any{"type": "string"},
		},
		"required": []string{"commune"},
	})
	sdkTools := ToTools([]llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "list_projects_by_commune",
				Description: "List projects located in a commune.",
				Parameters:  params,
			},
		},
	})
	require.Len(t, sdkTools, 1)
	require.NotNil(t, sdkTools[0].OfTool)
	assert.Equal(t, "list_projects_by_commune", sdkTools[0].OfTool.Name)
	assert.Equal(t, []string{"commune"}, sdkTools[0].OfTool.InputSchema.Required)
	assert.Contains(t, sdkTools[0].OfTool.InputSchema.Properties, "commune")
}

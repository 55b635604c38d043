package prompts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/pkg/llms"
)

func TestChatPromptTemplate(t *testing.T) {
	t.Parallel()

	template := NewChatPromptTemplate([]MessageFormatter{
		NewSystemMessagePromptTemplate(
			"You answer questions about environmental impact projects using a knowledge graph.",
			nil,
		),
		NewHumanMessagePromptTemplate(
			`Answer the question about {{.region}}:\n{{.question}}`,
			[]string{"region", "question"},
		),
	})
	value, err := template.FormatPrompt(map[string]any{
		"region":   "Atacama",
		"question": "How many projects are approved?",
	})
	require.NoError(t, err)
	expectedMessages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You answer questions about environmental impact projects using a knowledge graph."),
		llms.MessageFromTextParts(llms.RoleHuman, `Answer the question about Atacama:\nHow many projects are approved?`),
	}
	require.Equal(t, expectedMessages, value.Messages())

	_, err = template.FormatPrompt(map[string]any{
		"region": "Atacama",
	})
	require.Error(t, err)
}

func TestChatPromptTemplate_InputVariables(t *testing.T) {
	t.Parallel()

	template := NewChatPromptTemplate([]MessageFormatter{
		NewHumanMessagePromptTemplate(`{{.question}}`, []string{"question"}),
		NewAIMessagePromptTemplate(`{{.answer}}`, []string{"answer"}),
	})
	require.Equal(t, []string{"question", "answer"}, template.GetInputVariables())
}

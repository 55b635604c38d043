package prompts

import (
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"

	"github.com/nviro-labs/pathway/pkg/llms"
)

// FormatPrompter renders a prompt value from input values.
type FormatPrompter interface {
	FormatPrompt(values map[string]any) (llms.PromptValue, error)
	GetInputVariables() []string
}

// MessageFormatter renders one or more chat messages from input values.
type MessageFormatter interface {
	FormatMessages(values map[string]any) ([]llms.Message, error)
	GetInputVariables() []string
}

// MessagePromptTemplate renders a single message with a fixed role.
type MessagePromptTemplate struct {
	role           llms.Role
	template       string
	inputVariables []string
}

var _ MessageFormatter = (*MessagePromptTemplate)(nil)

func NewSystemMessagePromptTemplate(template string, inputVariables []string) *MessagePromptTemplate {
	return &MessagePromptTemplate{role: llms.RoleSystem, template: template, inputVariables: inputVariables}
}

func NewHumanMessagePromptTemplate(template string, inputVariables []string) *MessagePromptTemplate {
	return &MessagePromptTemplate{role: llms.RoleHuman, template: template, inputVariables: inputVariables}
}

func NewAIMessagePromptTemplate(template string, inputVariables []string) *MessagePromptTemplate {
	return &MessagePromptTemplate{role: llms.RoleAI, template: template, inputVariables: inputVariables}
}

func (p *MessagePromptTemplate) GetInputVariables() []string {
	return p.inputVariables
}

func (p *MessagePromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	text, err := renderTemplate(p.template, p.inputVariables, values)
	if err != nil {
		return nil, err
	}
	return []llms.Message{llms.MessageFromTextParts(p.role, text)}, nil
}

// ChatPromptTemplate is a sequence of message templates rendered together.
type ChatPromptTemplate struct {
	Messages []MessageFormatter
}

var _ FormatPrompter = (*ChatPromptTemplate)(nil)

func NewChatPromptTemplate(messages []MessageFormatter) *ChatPromptTemplate {
	return &ChatPromptTemplate{Messages: messages}
}

func (p *ChatPromptTemplate) GetInputVariables() []string {
	var vars []string
	for _, m := range p.Messages {
		vars = append(vars, m.GetInputVariables()...)
	}
	return vars
}

func (p *ChatPromptTemplate) FormatPrompt(values map[string]any) (llms.PromptValue, error) {
	var msgs ChatPromptValue
	for _, m := range p.Messages {
		rendered, err := m.FormatMessages(values)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, rendered...)
	}
	return msgs, nil
}

func renderTemplate(tmpl string, inputVariables []string, values map[string]any) (string, error) {
	for _, v := range inputVariables {
		if _, ok := values[v]; !ok {
			return "", errors.Newf("missing value for input variable: %s", v)
		}
	}
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template")
	}
	var sb strings.Builder
	if err := t.Execute(&sb, values); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return sb.String(), nil
}

// Package store persists chat history keyed by the chat ID carried in
// the context.
package store

import (
	"context"
	"time"

	"github.com/effective-security/xlog"

	"github.com/nviro-labs/pathway/pkg/llms"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "store")

// maxMessages bounds the history kept per chat.
const maxMessages = 50

// MessageStore keeps chat messages for the chat ID in the context.
type MessageStore interface {
	Messages(ctx context.Context) []llms.Message
	Add(ctx context.Context, msgs ...llms.Message) error
	Reset(ctx context.Context) error
}

// ChatManager manages chat metadata on top of the message history.
type ChatManager interface {
	MessageStore

	ListChats(ctx context.Context) ([]string, error)
	GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)
	UpdateChat(ctx context.Context, title string, metadata map[string]any) error
	Cleanup(ctx context.Context, olderThan time.Duration) (uint32, error)
}

// ChatInfo is the metadata of a chat.
type ChatInfo struct {
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Messages  []MessageModel `json:"messages,omitempty"`
}

// MessageModel is the serializable form of a chat message.
type MessageModel struct {
	Role         llms.Role              `json:"role"`
	Text         string                 `json:"text,omitempty"`
	ToolCalls    []llms.ToolCall        `json:"tool_calls,omitempty"`
	ToolResponse *llms.ToolCallResponse `json:"tool_response,omitempty"`
}

// ToModel converts a message to its serializable form.
func ToModel(msg llms.Message) MessageModel {
	model := MessageModel{
		Role: msg.Role,
	}
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			model.Text += p.Text
		case llms.ToolCall:
			model.ToolCalls = append(model.ToolCalls, p)
		case llms.ToolCallResponse:
			resp := p
			model.ToolResponse = &resp
		}
	}
	return model
}

// ToMessage converts a serialized model back to a message.
func (m MessageModel) ToMessage() llms.Message {
	msg := llms.Message{
		Role: m.Role,
	}
	if m.Text != "" {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: m.Text})
	}
	for _, tc := range m.ToolCalls {
		msg.Parts = append(msg.Parts, tc)
	}
	if m.ToolResponse != nil {
		msg.Parts = append(msg.Parts, *m.ToolResponse)
	}
	return msg
}

// ToMessages converts serialized models back to messages.
func ToMessages(models []MessageModel) []llms.Message {
	if len(models) == 0 {
		return nil
	}
	msgs := make([]llms.Message, len(models))
	for i, m := range models {
		msgs[i] = m.ToMessage()
	}
	return msgs
}

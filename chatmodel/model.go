// Package chatmodel defines the common request and response contracts
// shared by the agents.
package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
)

// ContentProvider exposes the plain text content of a message for the
// chat history.
type ContentProvider interface {
	GetContent() string
}

// OutputParser is an interface for parsing the output of an LLM call.
type OutputParser[T any] interface {
	// Parse parses the output of an LLM call.
	// If it fails to parse the input, it should return ErrFailedUnmarshalInput.
	Parse(text string) (*T, error)
	// GetFormatInstructions returns a string describing the format of the output.
	GetFormatInstructions() string
	// Type returns the string type key uniquely identifying this class of parser
	Type() string
}

type Stringer interface {
	String() string
}

func Stringify(s any) string {
	if v, ok := s.(Stringer); ok {
		return v.String()
	}
	if v, ok := s.(ContentProvider); ok {
		return v.GetContent()
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}

func ToBytes(s any) []byte {
	if v, ok := s.(Stringer); ok {
		return []byte(v.String())
	}
	if v, ok := s.(ContentProvider); ok {
		return []byte(v.GetContent())
	}
	bs, _ := json.Marshal(s)
	return bs
}

// InputRequest is the default input for agents that take a plain question.
type InputRequest struct {
	Input string `json:"input" yaml:"input" jsonschema:"title=Input,description=The message sent by the user to the assistant."`
}

func (r InputRequest) GetContent() string {
	return r.Input
}

// OutputResult is the default output for agents that return plain text.
type OutputResult struct {
	Content string `json:"content" yaml:"content" jsonschema:"title=Response Content,description=The content returned by agent or tool."`
}

func (r OutputResult) GetContent() string {
	return r.Content
}

type FewShotExample struct {
	Prompt     string
	Completion string
}

type FewShotExamples []FewShotExample

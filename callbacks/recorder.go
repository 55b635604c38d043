package callbacks

import (
	"context"
	"sync"
	"time"

	"github.com/effective-security/x/slices"

	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/tools"
)

// EventType identifies a recorded run event.
type EventType string

const (
	EventAgentStart   EventType = "agent_start"
	EventAgentEnd     EventType = "agent_end"
	EventAgentError   EventType = "agent_error"
	EventParseError   EventType = "parse_error"
	EventToolStart    EventType = "tool_start"
	EventToolEnd      EventType = "tool_end"
	EventToolError    EventType = "tool_error"
	EventToolNotFound EventType = "tool_not_found"
	EventLLMCallStart EventType = "llm_call_start"
	EventLLMCallEnd   EventType = "llm_call_end"
)

// Event is a single recorded run event.
type Event struct {
	Time   time.Time `json:"time"`
	Type   EventType `json:"type"`
	Agent  string    `json:"agent,omitempty"`
	Tool   string    `json:"tool,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Recorder collects run events, optionally forwarding each one to a sink.
// It is safe for concurrent use, tool callbacks fire from multiple goroutines.
type Recorder struct {
	lock   sync.Mutex
	events []Event
	sink   func(Event)
}

var (
	_ assistants.Callback = (*Recorder)(nil)
	_ tools.Callback      = (*Recorder)(nil)
)

func NewRecorder() *Recorder {
	return &Recorder{}
}

// WithSink forwards each event to the given function as it is recorded.
func (r *Recorder) WithSink(sink func(Event)) *Recorder {
	r.sink = sink
	return r
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset clears the recorded events.
func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = nil
}

func (r *Recorder) record(ev Event) {
	ev.Time = time.Now()
	r.lock.Lock()
	r.events = append(r.events, ev)
	sink := r.sink
	r.lock.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (r *Recorder) OnAssistantStart(ctx context.Context, agent assistants.IAssistant, input string) {
	r.record(Event{Type: EventAgentStart, Agent: agent.Name(), Detail: slices.StringUpto(input, 256)})
}

func (r *Recorder) OnAssistantEnd(ctx context.Context, agent assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	r.record(Event{Type: EventAgentEnd, Agent: agent.Name()})
}

func (r *Recorder) OnAssistantError(ctx context.Context, agent assistants.IAssistant, input string, err error, messages []llms.Message) {
	r.record(Event{Type: EventAgentError, Agent: agent.Name(), Detail: err.Error()})
}

func (r *Recorder) OnAssistantLLMParseError(ctx context.Context, agent assistants.IAssistant, input string, response string, err error) {
	r.record(Event{Type: EventParseError, Agent: agent.Name(), Detail: err.Error()})
}

func (r *Recorder) OnToolStart(ctx context.Context, tool tools.ITool, agentName, input string) {
	r.record(Event{Type: EventToolStart, Agent: agentName, Tool: tool.Name(), Detail: slices.StringUpto(input, 256)})
}

func (r *Recorder) OnToolEnd(ctx context.Context, tool tools.ITool, agentName, input string, output string) {
	r.record(Event{Type: EventToolEnd, Agent: agentName, Tool: tool.Name()})
}

func (r *Recorder) OnToolError(ctx context.Context, tool tools.ITool, agentName, input string, err error) {
	r.record(Event{Type: EventToolError, Agent: agentName, Tool: tool.Name(), Detail: err.Error()})
}

func (r *Recorder) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	r.record(Event{Type: EventToolNotFound, Agent: agent.Name(), Tool: tool})
}

func (r *Recorder) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	r.record(Event{Type: EventLLMCallStart, Agent: agent.Name(), Detail: llm.GetName()})
}

func (r *Recorder) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	r.record(Event{Type: EventLLMCallEnd, Agent: agent.Name(), Detail: llm.GetName()})
}

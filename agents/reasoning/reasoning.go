// Package reasoning implements an agent for intellectual tasks over
// results produced by other agents: summarizing, analyzing, comparing,
// interpreting. It runs a three stage pipeline, parse the instruction
// into a task, reason over the inputs, synthesize the final text.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"

	"github.com/nviro-labs/pathway/assistants"
	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/encoding"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/pkg/llmutils"
	"github.com/nviro-labs/pathway/pkg/metricskey"
	"github.com/nviro-labs/pathway/pkg/prompts"
	"github.com/nviro-labs/pathway/pkg/schema"
	"github.com/nviro-labs/pathway/tools"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "agents")

// AgentName is the registry name other agents use to delegate here.
const AgentName = "reasoning_agent"

// TaskType enumerates the supported reasoning activities.
type TaskType string

const (
	TaskSummarize  TaskType = "summarize"
	TaskDescribe   TaskType = "describe"
	TaskReflect    TaskType = "reflect"
	TaskAnalyze    TaskType = "analyze"
	TaskThink      TaskType = "think"
	TaskRead       TaskType = "read"
	TaskJudge      TaskType = "judge"
	TaskInterpret  TaskType = "interpret"
	TaskSynthesize TaskType = "synthesize"
	TaskCompare    TaskType = "compare"
	TaskEvaluate   TaskType = "evaluate"
)

var validTaskTypes = map[TaskType]bool{
	TaskSummarize: true, TaskDescribe: true, TaskReflect: true,
	TaskAnalyze: true, TaskThink: true, TaskRead: true,
	TaskJudge: true, TaskInterpret: true, TaskSynthesize: true,
	TaskCompare: true, TaskEvaluate: true,
}

// Task is the parsed reasoning task.
type Task struct {
	Type    TaskType `json:"task_type" yaml:"task_type" jsonschema:"title=Task type,description=The type of reasoning task to perform,enum=summarize,enum=describe,enum=reflect,enum=analyze,enum=think,enum=read,enum=judge,enum=interpret,enum=synthesize,enum=compare,enum=evaluate"`
	Focus   string   `json:"focus" yaml:"focus" jsonschema:"title=Focus,description=What to focus on during the reasoning task."`
	Context string   `json:"context,omitempty" yaml:"context,omitempty" jsonschema:"title=Context,description=Additional context for the reasoning task."`
}

func (t Task) GetContent() string { return t.Focus }

// Response is the output of the reasoning stage.
type Response struct {
	Reasoning  string   `json:"reasoning" yaml:"reasoning" jsonschema:"title=Reasoning,description=The reasoning process and thoughts."`
	Conclusion string   `json:"conclusion" yaml:"conclusion" jsonschema:"title=Conclusion,description=The final conclusion or output."`
	Confidence float64  `json:"confidence" yaml:"confidence" jsonschema:"title=Confidence,description=Confidence level in the conclusion between 0 and 1."`
	KeyPoints  []string `json:"key_points,omitempty" yaml:"key_points,omitempty" jsonschema:"title=Key points,description=Key points identified during reasoning."`
}

func (r Response) GetContent() string { return r.Conclusion }

const parserPrompt = `You classify a reasoning instruction into a task.
Identify the type of intellectual activity requested and what it should
focus on. Use the provided results only as context.`

const enginePrompt = `You are a careful reasoning engine. Perform the
requested task over the provided results. Be precise, ground every
claim in the given data, and say so when the data is insufficient.`

const synthPrompt = `You turn a reasoning process into a final text that
directly addresses the original instruction. Answer in the language of
the instruction, in clear markdown.`

// Agent performs reasoning tasks. It degrades instead of failing: every
// stage has a typed fallback so a malformed LLM response never aborts a
// plan run.
type Agent struct {
	parser *assistants.Assistant[Task]
	engine *assistants.Assistant[Response]
	synth  *assistants.Assistant[chatmodel.String]
}

var _ tools.ITool = (*Agent)(nil)

func New(model llms.Model) *Agent {
	return &Agent{
		parser: assistants.NewAssistant[Task](model, singleSystemPrompt(parserPrompt),
			assistants.WithTemperature(0),
		).WithName("reasoning_task_parser"),
		engine: assistants.NewAssistant[Response](model, singleSystemPrompt(enginePrompt),
			assistants.WithTemperature(0.1),
		).WithName("reasoning_engine"),
		synth: assistants.NewAssistant[chatmodel.String](model, singleSystemPrompt(synthPrompt),
			assistants.WithTemperature(0),
			assistants.WithMode(encoding.ModePlainText),
		).WithName("reasoning_synthesizer"),
	}
}

func singleSystemPrompt(text string) prompts.FormatPrompter {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(text, nil),
	})
}

// Input is the tool-call input when the agent is used as a tool.
type Input struct {
	Instruction string `json:"instruction" yaml:"instruction" jsonschema:"title=Instruction,description=The reasoning instruction to execute."`
}

func (i Input) GetContent() string { return i.Instruction }

func (a *Agent) Name() string { return AgentName }

func (a *Agent) Description() string {
	return "Performs intellectual tasks over prior results: summarize, analyze, compare, interpret, reflect."
}

func (a *Agent) Parameters() *jsonschema.Schema {
	sc, err := schema.New(reflect.TypeOf(Input{}))
	if err != nil {
		return nil
	}
	return sc.Parameters
}

// Call lets the agent serve as a plain tool. The input may be the raw
// instruction or a JSON Input object.
func (a *Agent) Call(ctx context.Context, input string) (string, error) {
	instruction := input
	var parsed Input
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &parsed); err == nil && parsed.Instruction != "" {
		instruction = parsed.Instruction
	}
	return a.Reason(ctx, instruction, nil, nil)
}

// Reason runs the full pipeline. currentResults are completed step
// results, partialResults are raw tool outputs gathered so far.
func (a *Agent) Reason(ctx context.Context, instruction string, currentResults, partialResults []any) (string, error) {
	task := a.parseTask(ctx, instruction, currentResults)
	response := a.reason(ctx, task, currentResults, partialResults)
	return a.synthesize(ctx, instruction, response), nil
}

func (a *Agent) parseTask(ctx context.Context, instruction string, currentResults []any) *Task {
	prompt := fmt.Sprintf("Instruction: %s\n\nCurrent Results: %s",
		instruction, FormatResults(currentResults))

	var task Task
	_, err := a.parser.Run(ctx, &assistants.CallInput{Input: prompt}, &task)
	if err != nil || !validTaskTypes[task.Type] {
		metricskey.StatsAgentFallbacks.IncrCounter(1, a.parser.Name(), "parse")
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", a.parser.Name(),
			"status", "task_parse_fallback",
			"task_type", string(task.Type),
		)
		return &Task{Type: TaskAnalyze, Focus: instruction}
	}
	return &task
}

func (a *Agent) reason(ctx context.Context, task *Task, currentResults, partialResults []any) *Response {
	prompt := fmt.Sprintf(`Task Type: %s
Focus: %s
Context: %s

Current Results:
%s

Partial Results:
%s

Please perform the reasoning task and provide your analysis.`,
		task.Type, task.Focus, task.Context,
		FormatResults(currentResults), FormatResults(partialResults))

	var response Response
	_, err := a.engine.Run(ctx, &assistants.CallInput{Input: prompt}, &response)
	if err != nil {
		metricskey.StatsAgentFallbacks.IncrCounter(1, a.engine.Name(), "reason")
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", a.engine.Name(),
			"status", "reasoning_fallback",
			"err", err.Error(),
		)
		return &Response{
			Reasoning:  "Error occurred during reasoning",
			Conclusion: err.Error(),
			Confidence: 0.1,
		}
	}
	return &response
}

func (a *Agent) synthesize(ctx context.Context, instruction string, response *Response) string {
	var keyPoints strings.Builder
	for _, point := range response.KeyPoints {
		keyPoints.WriteString("- ")
		keyPoints.WriteString(point)
		keyPoints.WriteString("\n")
	}

	prompt := fmt.Sprintf(`Original Instruction: %s

Reasoning Process: %s

Conclusion: %s

Key Points:
%s
Generate the final output that directly addresses the instruction.`,
		instruction, response.Reasoning, response.Conclusion, keyPoints.String())

	var out chatmodel.String
	_, err := a.synth.Run(ctx, &assistants.CallInput{Input: prompt}, &out)
	if err != nil || out.GetContent() == "" {
		metricskey.StatsAgentFallbacks.IncrCounter(1, a.synth.Name(), "synthesize")
		// The conclusion is the best answer available.
		return response.Conclusion
	}
	return out.GetContent()
}

// FormatResults renders prior results for a prompt: JSON for maps,
// truncation for long strings.
func FormatResults(results []any) string {
	if len(results) == 0 {
		return "No results available"
	}
	var parts []string
	for i, result := range results {
		switch val := result.(type) {
		case map[string]any:
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, llmutils.ToJSONIndent(val)))
		case string:
			if len(val) > 1000 {
				val = llmutils.TruncateAtRune(val, 1000) + "..."
			}
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, val))
		default:
			parts = append(parts, fmt.Sprintf("%d. %v", i+1, val))
		}
	}
	return strings.Join(parts, "\n\n")
}

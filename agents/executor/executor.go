// Package executor runs plan steps against the tool registry, one step
// at a time with reflection between steps. A failed step is recorded
// and execution continues, stopping only past the error cap.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"

	"github.com/nviro-labs/pathway/agents/planner"
	"github.com/nviro-labs/pathway/pkg/llmutils"
	"github.com/nviro-labs/pathway/tools"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "agents")

// MaxErrors is how many step failures are tolerated before execution
// stops early.
const MaxErrors = 3

// ToolResult records the outcome of one executed step.
type ToolResult struct {
	ToolName  string `json:"tool_name"`
	StepIndex int    `json:"step_index"`
	Result    string `json:"result,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Result is the outcome of executing a plan.
type Result struct {
	Answer      string        `json:"answer"`
	Plan        *planner.Plan `json:"plan,omitempty"`
	ToolResults []ToolResult  `json:"tool_results,omitempty"`
	Errors      []string      `json:"errors,omitempty"`
	Complete    bool          `json:"complete"`
}

// ResultsAware is implemented by agent tools that want the results of
// prior steps as reasoning context.
type ResultsAware interface {
	Reason(ctx context.Context, instruction string, currentResults, partialResults []any) (string, error)
}

// Executor runs plans over a tool registry.
type Executor struct {
	registry *tools.Registry
	callback tools.Callback
}

type Option func(*Executor)

// WithCallback observes tool invocations, used for streaming progress.
func WithCallback(cb tools.Callback) Option {
	return func(e *Executor) { e.callback = cb }
}

func New(registry *tools.Registry, options ...Option) *Executor {
	ret := &Executor{registry: registry}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Execute runs the plan to completion. It never returns an error: all
// failures are recorded in the result.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan) *Result {
	res := &Result{Plan: plan}

	// Direct responses bypass execution entirely.
	if plan != nil && plan.DirectResponse != "" && len(plan.Steps) == 0 {
		res.Answer = plan.DirectResponse
		res.Complete = true
		return res
	}

	if plan == nil || len(plan.Steps) == 0 {
		res.Answer = "No plan was provided to execute."
		res.Errors = append(res.Errors, "no plan provided")
		res.Complete = true
		return res
	}

	for idx := range plan.Steps {
		step := &plan.Steps[idx]
		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", "executor",
			"status", "executing_step",
			"step", idx+1,
			"steps", len(plan.Steps),
			"tool", step.SuggestedTool,
		)

		output, err := e.executeStep(ctx, plan, idx)

		tr := ToolResult{ToolName: step.SuggestedTool, StepIndex: idx}
		if err != nil {
			tr.Err = err.Error()
			step.Result = fmt.Sprintf("Error: %s", err.Error())
			res.Errors = append(res.Errors, fmt.Sprintf("Step %d failed: %s", idx+1, err.Error()))
		} else {
			tr.Result = output
			step.Result = output
		}
		step.IsComplete = true
		res.ToolResults = append(res.ToolResults, tr)

		// Reflect: keep going unless too many failures piled up.
		if len(res.Errors) > MaxErrors {
			logger.ContextKV(ctx, xlog.WARNING,
				"agent", "executor",
				"status", "too_many_errors",
				"errors", len(res.Errors),
			)
			break
		}
	}

	e.finish(res)
	return res
}

func (e *Executor) executeStep(ctx context.Context, plan *planner.Plan, idx int) (string, error) {
	step := &plan.Steps[idx]

	tool, valid := e.registry.Resolve(step.SuggestedTool)
	if tool == nil {
		return "", errors.Newf("no tool available for %q", step.SuggestedTool)
	}
	if !valid {
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", "executor",
			"status", "tool_substituted",
			"requested", step.SuggestedTool,
			"used", tool.Name(),
		)
		step.SuggestedTool = tool.Name()
	}

	input := e.buildInput(tool, step.Instruction)
	if input == "" {
		// Region extraction failed, report it as the step result so the
		// plan keeps flowing.
		return fmt.Sprintf("Error: Could not extract region parameter from instruction. Please ensure the instruction contains a clear region name. Instruction was: %q", step.Instruction), nil
	}

	if e.callback != nil {
		e.callback.OnToolStart(ctx, tool, "executor", input)
	}

	var output string
	var err error
	if ra, ok := tool.(ResultsAware); ok {
		current, partial := priorResults(plan, idx)
		output, err = ra.Reason(ctx, step.Instruction, current, partial)
	} else {
		output, err = tool.Call(ctx, input)
	}

	if e.callback != nil {
		if err != nil {
			e.callback.OnToolError(ctx, tool, "executor", input, err)
		} else {
			e.callback.OnToolEnd(ctx, tool, "executor", input, output)
		}
	}
	return output, err
}

// buildInput maps the step instruction to the tool's input schema:
// parameterless tools get an empty object, region tools get the region
// extracted from the instruction, everything else gets the instruction.
// An empty return means a required region could not be extracted.
func (e *Executor) buildInput(tool tools.ITool, instruction string) string {
	params := tool.Parameters()
	switch {
	case hasParam(params, "region"):
		region := ExtractRegion(instruction)
		if region == "" {
			return ""
		}
		return llmutils.ToJSON(map[string]string{"region": region})
	case hasParam(params, "input"):
		return llmutils.ToJSON(map[string]string{"input": instruction})
	case hasParam(params, "instruction"):
		return llmutils.ToJSON(map[string]string{"instruction": instruction})
	case params == nil || params.Properties == nil || params.Properties.Len() == 0:
		return "{}"
	default:
		return instruction
	}
}

func hasParam(sc *jsonschema.Schema, name string) bool {
	if sc == nil || sc.Properties == nil {
		return false
	}
	_, ok := sc.Properties.Get(name)
	return ok
}

// priorResults gathers completed step results and raw outputs before
// the given step, as reasoning context.
func priorResults(plan *planner.Plan, idx int) (current, partial []any) {
	for i := 0; i < idx; i++ {
		step := plan.Steps[i]
		if step.IsComplete && step.Result != "" {
			current = append(current, map[string]any{
				"step":        i + 1,
				"instruction": step.Instruction,
				"result":      step.Result,
			})
			partial = append(partial, step.Result)
		}
	}
	return current, partial
}

func (e *Executor) finish(res *Result) {
	res.Complete = true
	if res.Answer != "" {
		return
	}

	if len(res.ToolResults) > 0 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "**Goal:** %s\n", res.Plan.Goal)
		for i, step := range res.Plan.Steps {
			if !step.IsComplete {
				continue
			}
			fmt.Fprintf(&sb, "\n**Step %d: %s**", i+1, step.Instruction)
			if step.Result != "" {
				fmt.Fprintf(&sb, "\nResult: %s", step.Result)
			}
		}
		res.Answer = sb.String()
		return
	}

	if res.Plan != nil && res.Plan.DirectResponse != "" {
		res.Answer = res.Plan.DirectResponse
		return
	}
	res.Answer = "No results available."
}

var regionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)regi[oó]n\s+de\s+([A-Za-záéíóúñÁÉÍÓÚÑ][A-Za-záéíóúñÁÉÍÓÚÑ\s]*)`),
	regexp.MustCompile(`(?i)regi[oó]n\s+([A-Za-záéíóúñÁÉÍÓÚÑ][A-Za-záéíóúñÁÉÍÓÚÑ\s]*)`),
}

var regionMarkers = []string{
	"region:", "región:",
	"para la ", "de la ", "en la ",
	"para ", "de ", "en ",
}

// ExtractRegion pulls a region name out of a step instruction, first by
// explicit markers, then by common phrasing patterns. Returns "" when
// nothing plausible is found.
func ExtractRegion(instruction string) string {
	lower := strings.ToLower(instruction)
	for _, marker := range regionMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		candidate := strings.TrimSpace(instruction[idx+len(marker):])
		candidate = strings.Trim(candidate, "\"'.,")
		for _, delim := range []string{",", ".", "?", "!", "\n"} {
			if cut, _, ok := strings.Cut(candidate, delim); ok {
				candidate = cut
			}
		}
		candidate = strings.TrimSpace(candidate)
		if len(candidate) > 3 {
			return candidate
		}
	}

	for _, pattern := range regionPatterns {
		if m := pattern.FindStringSubmatch(instruction); m != nil {
			if candidate := strings.TrimSpace(m[1]); candidate != "" {
				return candidate
			}
		}
	}
	return ""
}

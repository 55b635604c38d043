// Package supervisor orchestrates the full question answering flow:
// plan with tool awareness, validate the plan against the registry,
// execute it and finalize the answer.
package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/xlog"

	"github.com/nviro-labs/pathway/agents/executor"
	"github.com/nviro-labs/pathway/agents/planner"
	"github.com/nviro-labs/pathway/tools"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "agents")

// Result is the final outcome returned to the caller.
type Result = executor.Result

// Event is a node update emitted while a question is being processed,
// used by the streaming API.
type Event struct {
	Node   string `json:"node"`
	Detail string `json:"detail,omitempty"`
}

// EventFunc receives node updates as the run progresses.
type EventFunc func(Event)

// Supervisor runs the planner and executor over a shared tool registry.
type Supervisor struct {
	planner  *planner.Planner
	executor *executor.Executor
	registry *tools.Registry
	onEvent  EventFunc
}

type Option func(*Supervisor)

// WithEvents registers a sink for node updates.
func WithEvents(fn EventFunc) Option {
	return func(s *Supervisor) { s.onEvent = fn }
}

func New(p *planner.Planner, e *executor.Executor, registry *tools.Registry, options ...Option) *Supervisor {
	ret := &Supervisor{
		planner:  p,
		executor: e,
		registry: registry,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

func (s *Supervisor) emit(node, detail string) {
	if s.onEvent != nil {
		s.onEvent(Event{Node: node, Detail: detail})
	}
}

// RunWithEvents answers the question while sending node updates to fn.
// The receiver is not modified, so a shared Supervisor can serve
// concurrent requests each with their own sink.
func (s *Supervisor) RunWithEvents(ctx context.Context, question string, fn EventFunc) *Result {
	clone := *s
	clone.onEvent = fn
	return clone.Run(ctx, question)
}

// Run answers the question. It never returns an error: failures are
// carried in the result so the caller always has an answer to show.
func (s *Supervisor) Run(ctx context.Context, question string) *Result {
	s.emit("inject_tools", fmt.Sprintf("%d tools available", len(s.registry.Names())))

	s.emit("generate_plan", question)
	plan, err := s.planner.Plan(ctx, question)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"agent", "supervisor",
			"status", "plan_generation_failed",
			"err", err.Error(),
		)
		s.emit("finalize", "planning failed")
		return &Result{
			Answer:   "I encountered an error while planning how to answer your question.",
			Errors:   []string{fmt.Sprintf("Failed to generate plan: %s", err.Error())},
			Complete: true,
		}
	}
	s.emit("plan_generated", fmt.Sprintf("%d steps", len(plan.Steps)))

	if plan.DirectResponse != "" && len(plan.Steps) == 0 {
		s.emit("direct_answer", "")
		return &Result{Answer: plan.DirectResponse, Plan: plan, Complete: true}
	}

	s.validate(ctx, plan)

	s.emit("execute", "")
	res := s.executor.Execute(ctx, plan)

	s.finalize(res)
	s.emit("finalize", "")
	return res
}

// validate maps every step's suggested tool to a registered tool. A
// plan is never rejected: unknown names are substituted, exact names
// pass through.
func (s *Supervisor) validate(ctx context.Context, plan *planner.Plan) {
	substituted := 0
	for i := range plan.Steps {
		step := &plan.Steps[i]
		tool, valid := s.registry.Resolve(step.SuggestedTool)
		if tool == nil {
			// Nothing registered at all, the executor will record the error.
			continue
		}
		if !valid {
			logger.ContextKV(ctx, xlog.WARNING,
				"agent", "supervisor",
				"status", "plan_tool_substituted",
				"step", i+1,
				"requested", step.SuggestedTool,
				"used", tool.Name(),
			)
			s.emit("validate_plan", fmt.Sprintf("step %d: %q mapped to %q", i+1, step.SuggestedTool, tool.Name()))
			step.SuggestedTool = tool.Name()
			substituted++
		}
	}
	s.emit("validate_plan", fmt.Sprintf("%d steps validated, %d substituted", len(plan.Steps), substituted))
}

func (s *Supervisor) finalize(res *Result) {
	res.Complete = true
	if res.Answer != "" {
		return
	}

	// Compile whatever the steps produced.
	var parts []string
	for _, tr := range res.ToolResults {
		if tr.Err == "" && tr.Result != "" {
			parts = append(parts, tr.Result)
		}
	}
	if len(parts) > 0 {
		res.Answer = strings.Join(parts, "\n\n")
		return
	}
	res.Answer = "I was unable to generate an answer."
}

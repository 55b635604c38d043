package tools

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "tools")

// Info describes a registered tool for planning purposes. UseCases and
// Keywords guide the planner toward the right tool for a question.
type Info struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	UseCases    []string `json:"use_cases,omitempty" yaml:"use_cases,omitempty"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Suggestion is a scored tool candidate for a question.
type Suggestion struct {
	Name  string
	Score int
}

// Registry holds the tools available to the agents, with metadata used
// to build prompts, validate plans and suggest tools for a question.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]ITool
	infos       map[string]Info
	order       []string
	defaultTool string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ITool),
		infos: make(map[string]Info),
	}
}

// Register adds a tool with its metadata. Name collisions are rejected.
func (r *Registry) Register(tool ITool, info Info) error {
	name := tool.Name()
	if name == "" {
		return errors.New("tool name is required")
	}
	if info.Name == "" {
		info.Name = name
	}
	if info.Description == "" {
		info.Description = tool.Description()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; ok {
		return errors.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = tool
	r.infos[name] = info
	r.order = append(r.order, name)

	logger.KV(xlog.DEBUG, "status", "registered_tool", "tool", name)
	return nil
}

// SetDefault marks a registered tool as the fallback for unknown tool
// names.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return errors.Errorf("tool not registered: %s", name)
	}
	r.defaultTool = name
	return nil
}

// Default returns the fallback tool name, empty if not set.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultTool
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Lookup returns the tool by name, matching case-insensitively.
func (r *Registry) Lookup(name string) (ITool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(name)
}

// lookup requires r.mu held.
func (r *Registry) lookup(name string) (ITool, bool) {
	if tool, ok := r.tools[name]; ok {
		return tool, true
	}
	lower := strings.ToLower(name)
	for _, registered := range r.order {
		if strings.ToLower(registered) == lower {
			return r.tools[registered], true
		}
	}
	return nil, false
}

// GetInfo returns the metadata of a registered tool.
func (r *Registry) GetInfo(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.infos[name]
	return info, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []ITool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]ITool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Resolve maps a suggested tool name to a registered tool. Exact names
// pass through; unknown names are matched against tool keywords, then
// fall back to the default tool. The returned bool reports whether the
// suggestion named a registered tool.
func (r *Registry) Resolve(name string) (ITool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tool, ok := r.lookup(name); ok {
		return tool, true
	}
	lower := strings.ToLower(name)

	// Planners invent close-enough names, map them by keywords.
	var bestName string
	bestScore := 0
	for _, registered := range r.order {
		info := r.infos[registered]
		score := 0
		for _, kw := range info.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestName = registered
		}
	}
	if bestName != "" {
		logger.KV(xlog.DEBUG, "status", "tool_keyword_match", "requested", name, "matched", bestName)
		return r.tools[bestName], false
	}

	if r.defaultTool != "" {
		if tool, ok := r.tools[r.defaultTool]; ok {
			logger.KV(xlog.DEBUG, "status", "tool_fallback", "requested", name, "fallback", r.defaultTool)
			return tool, false
		}
	}
	return nil, false
}

// Suggest scores the registered tools against the question by keyword
// matches and returns up to topK candidates, best first. Tools with no
// matching keywords are omitted; when nothing scores, the default tool
// is suggested so the caller always has a candidate.
func (r *Registry) Suggest(question string, topK int) []Suggestion {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(question)
	var scored []Suggestion
	for _, name := range r.order {
		info := r.infos[name]
		score := 0
		for _, kw := range info.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, Suggestion{Name: name, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) == 0 && r.defaultTool != "" {
		if _, ok := r.tools[r.defaultTool]; ok {
			scored = append(scored, Suggestion{Name: r.defaultTool})
		}
	}

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// PromptBlock renders the registered tools as a block for planner
// prompts, one tool per entry with its description and use cases.
func (r *Registry) PromptBlock() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("Available tools (use only these exact tool names):\n")
	for _, name := range r.order {
		info := r.infos[name]
		sb.WriteString("- ")
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(info.Description)
		sb.WriteString("\n")
		if len(info.UseCases) > 0 {
			sb.WriteString("  Use cases: ")
			sb.WriteString(strings.Join(info.UseCases, "; "))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Package fewshots loads example question/answer sets from YAML and
// selects the examples closest to an input by keyword overlap.
package fewshots

import (
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/nviro-labs/pathway/chatmodel"
)

// candidate input/output key pairs, checked in order of preference.
// The datasets use Spanish keys for questions.
var candidatePairs = [][2]string{
	{"input", "output"},
	{"pregunta", "generated_queries"},
	{"pregunta", "cypher_query"},
	{"question", "answer"},
}

// Example is a normalized input/output pair.
type Example struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// Set holds normalized examples from one document or group.
type Set struct {
	examples []Example
}

// LoadFile reads a YAML document from disk. See Load.
func LoadFile(path, group string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read examples: %s", path)
	}
	return Load(data, group)
}

// Load parses a YAML document of examples. The root may be a list of
// items or a mapping of group names to lists; group selects one group,
// empty means auto-detect the group with the best key coverage. Items
// may carry any known key pair, or alternate {input: ...}, {output: ...}
// entries which are folded into pairs. Incomplete items are skipped and
// duplicates removed.
func Load(data []byte, group string) (*Set, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.WithMessage(err, "failed to parse examples")
	}

	var rows []map[string]any
	switch doc := root.(type) {
	case []any:
		rows = dictItems(doc)
	case map[string]any:
		groups := map[string][]map[string]any{}
		for name, val := range doc {
			if list, ok := val.([]any); ok {
				groups[name] = dictItems(list)
			}
		}
		if len(groups) == 0 {
			return nil, errors.New("examples document has no list groups")
		}
		if group != "" {
			items, ok := groups[group]
			if !ok {
				return nil, errors.Newf("examples group not found: %s", group)
			}
			rows = items
		} else {
			rows = bestGroup(groups)
		}
	default:
		return nil, errors.New("examples document must be a list or a mapping of lists")
	}

	rows = foldSequentialPairs(rows)

	inKey, outKey := bestPair(rows)
	if inKey == "" {
		return nil, errors.New("could not infer input/output keys for examples")
	}

	set := &Set{}
	seen := map[string]bool{}
	for _, row := range rows {
		input := strings.TrimSpace(stringValue(row[inKey]))
		output := strings.TrimSpace(stringValue(row[outKey]))
		if input == "" || output == "" {
			continue
		}
		key := input + "\n" + output
		if seen[key] {
			continue
		}
		seen[key] = true
		set.examples = append(set.examples, Example{Input: input, Output: output})
	}
	if len(set.examples) == 0 {
		return nil, errors.New("no valid examples after normalization")
	}
	return set, nil
}

// Len returns the number of examples in the set.
func (s *Set) Len() int { return len(s.examples) }

// Examples returns a copy of all examples.
func (s *Set) Examples() []Example {
	out := make([]Example, len(s.examples))
	copy(out, s.examples)
	return out
}

// Select returns up to k examples ranked by keyword overlap with the
// input, falling back to the first k when nothing matches.
func (s *Set) Select(input string, k int) []Example {
	if k <= 0 {
		k = 2
	}
	if k > len(s.examples) {
		k = len(s.examples)
	}

	terms := tokens(input)
	type scored struct {
		ex    Example
		score int
	}
	ranked := make([]scored, 0, len(s.examples))
	for _, ex := range s.examples {
		score := 0
		exTokens := tokens(ex.Input + " " + ex.Output)
		for term := range terms {
			if exTokens[term] {
				score++
			}
		}
		ranked = append(ranked, scored{ex: ex, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]Example, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, r.ex)
	}
	return out
}

// FewShot renders the selection as chat examples for an agent prompt.
func (s *Set) FewShot(input string, k int) chatmodel.FewShotExamples {
	selected := s.Select(input, k)
	out := make(chatmodel.FewShotExamples, 0, len(selected))
	for _, ex := range selected {
		out = append(out, chatmodel.FewShotExample{
			Prompt:     ex.Input,
			Completion: ex.Output,
		})
	}
	return out
}

func dictItems(list []any) []map[string]any {
	var out []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// foldSequentialPairs turns alternating {input: v1}, {output: v2} items
// into {input: v1, output: v2} rows. Other shapes pass through as is.
func foldSequentialPairs(rows []map[string]any) []map[string]any {
	sequential := len(rows) > 0
	for _, row := range rows {
		_, hasIn := row["input"]
		_, hasOut := row["output"]
		if hasIn == hasOut {
			sequential = false
			break
		}
	}
	if !sequential {
		return rows
	}

	var out []map[string]any
	for i := 0; i < len(rows)-1; {
		in, hasIn := rows[i]["input"]
		output, hasOut := rows[i+1]["output"]
		if hasIn && hasOut {
			out = append(out, map[string]any{"input": in, "output": output})
			i += 2
		} else {
			i++
		}
	}
	return out
}

func bestGroup(groups map[string][]map[string]any) []map[string]any {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var bestName string
	bestScore := 0
	for _, name := range names {
		items := foldSequentialPairs(groups[name])
		score := 0
		for _, pair := range candidatePairs {
			score += countPair(items, pair[0], pair[1])
		}
		if score > bestScore {
			bestScore = score
			bestName = name
		}
	}
	if bestName == "" {
		// No recognizable pairs anywhere, flatten everything.
		var merged []map[string]any
		for _, name := range names {
			merged = append(merged, groups[name]...)
		}
		return merged
	}
	return groups[bestName]
}

func bestPair(rows []map[string]any) (string, string) {
	var inKey, outKey string
	bestCount := 0
	for _, pair := range candidatePairs {
		if count := countPair(rows, pair[0], pair[1]); count > bestCount {
			bestCount = count
			inKey, outKey = pair[0], pair[1]
		}
	}
	return inKey, outKey
}

func countPair(rows []map[string]any, inKey, outKey string) int {
	count := 0
	for _, row := range rows {
		_, hasIn := row[inKey]
		_, hasOut := row[outKey]
		if hasIn && hasOut {
			count++
		}
	}
	return count
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func tokens(text string) map[string]bool {
	out := map[string]bool{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r >= 0x80)
	}) {
		if len(word) > 2 {
			out[word] = true
		}
	}
	return out
}

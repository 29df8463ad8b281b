package llmrt

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToolCallFragment is one delta of a streaming tool-call as delivered by a
// provider (§4.D). Index groups fragments belonging to the same call.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	ArgsChunk string
}

// NormalizedToolCall is the finalized, assembled form of a streamed tool
// call, ready to become a ToolCallBlock.
type NormalizedToolCall struct {
	Index int
	ID    string
	Name  string
	Args  map[string]any
}

// ToolCallAccumulator collects fragments keyed by index and finalizes them
// into NormalizedToolCall values. It is not safe for concurrent use from
// multiple goroutines without external synchronization — one accumulator
// belongs to one in-flight stream.
type ToolCallAccumulator struct {
	order []int
	byIdx map[int]*pendingCall
}

type pendingCall struct {
	id       string
	name     string
	argsBuf  strings.Builder
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{byIdx: make(map[int]*pendingCall)}
}

// Add folds one fragment into the accumulator.
func (a *ToolCallAccumulator) Add(f ToolCallFragment) {
	p, ok := a.byIdx[f.Index]
	if !ok {
		p = &pendingCall{}
		a.byIdx[f.Index] = p
		a.order = append(a.order, f.Index)
	}
	// First fragment with a non-empty id wins; later fragments at the same
	// index reuse it even if their own id is absent.
	if p.id == "" && f.ID != "" {
		p.id = f.ID
	}
	if p.name == "" && f.Name != "" {
		p.name = f.Name
	}
	if f.ArgsChunk != "" {
		p.argsBuf.WriteString(f.ArgsChunk)
	}
}

// Finalize returns the assembled calls in index order (ascending), after
// robustly parsing each accumulated argument string.
func (a *ToolCallAccumulator) Finalize() []NormalizedToolCall {
	indices := append([]int(nil), a.order...)
	sort.Ints(indices)

	out := make([]NormalizedToolCall, 0, len(indices))
	for _, idx := range indices {
		p := a.byIdx[idx]
		out = append(out, NormalizedToolCall{
			Index: idx,
			ID:    p.id,
			Name:  p.name,
			Args:  parseToolArgs(p.argsBuf.String()),
		})
	}
	return out
}

// parseToolArgs tolerantly parses an accumulated JSON-argument string.
// Known pathologies (double-escaped strings, a truncated trailing brace)
// are repaired before falling back to wrapping the raw string.
func parseToolArgs(raw string) map[string]any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}
	}

	if obj, ok := tryParseObject(trimmed); ok {
		return obj
	}

	// Truncated stream: the string may be missing trailing closing braces.
	repaired := repairTruncatedJSON(trimmed)
	if repaired != trimmed {
		if obj, ok := tryParseObject(repaired); ok {
			return obj
		}
	}

	// Double-escaped JSON string (the whole payload was itself JSON-encoded
	// as a string literal) — unwrap one layer and retry.
	if unwrapped, ok := unwrapJSONString(trimmed); ok {
		if obj, ok := tryParseObject(unwrapped); ok {
			return obj
		}
	}

	return map[string]any{"value": raw}
}

func tryParseObject(s string) (map[string]any, bool) {
	result := gjson.Parse(s)
	if !result.IsObject() {
		return nil, false
	}
	var valid bool
	out := make(map[string]any)
	result.ForEach(func(key, value gjson.Result) bool {
		valid = true
		out[key.String()] = value.Value()
		return true
	})
	if !valid && s != "{}" {
		return nil, false
	}
	return out, true
}

func unwrapJSONString(s string) (string, bool) {
	result := gjson.Parse(s)
	if result.Type != gjson.String {
		return "", false
	}
	return result.String(), true
}

// repairTruncatedJSON balances unterminated braces/brackets (not strings)
// left over from a stream cut off mid-chunk, using sjson to validate the repair
// by round-tripping a no-op set against it.
func repairTruncatedJSON(s string) string {
	openBraces := strings.Count(s, "{") - strings.Count(s, "}")
	openBrackets := strings.Count(s, "[") - strings.Count(s, "]")
	if openBraces <= 0 && openBrackets <= 0 {
		return s
	}

	repaired := s
	for i := 0; i < openBrackets; i++ {
		repaired += "]"
	}
	for i := 0; i < openBraces; i++ {
		repaired += "}"
	}

	// sjson.Set validates the repaired document is syntactically sound
	// JSON by performing a harmless touch-write; if that fails we give up
	// and return the original string so the caller falls through to the
	// {"value":...} wrapper.
	if _, err := sjson.Set(repaired, "__llmrt_probe", true); err != nil {
		return s
	}
	return repaired
}

// NormalizeToolName lowercases and trims a tool name as delivered by the
// wire, ahead of registry validation.
func NormalizeToolName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ToolValidation is the outcome of validating a normalized tool name
// against the set of tools available to the call.
type ToolValidation struct {
	Valid         bool
	CorrectedName string
	Reason        string
}

// ValidateToolName checks a normalized name against the available tool
// names: case-insensitive exact match first, then unambiguous prefix match.
func ValidateToolName(name string, available []string) ToolValidation {
	normalized := NormalizeToolName(name)
	if normalized == "" {
		return ToolValidation{Valid: false, Reason: "empty tool name"}
	}

	for _, a := range available {
		if NormalizeToolName(a) == normalized {
			return ToolValidation{Valid: true, CorrectedName: a}
		}
	}

	var prefixMatches []string
	for _, a := range available {
		if strings.HasPrefix(NormalizeToolName(a), normalized) {
			prefixMatches = append(prefixMatches, a)
		}
	}
	if len(prefixMatches) == 1 {
		return ToolValidation{Valid: true, CorrectedName: prefixMatches[0]}
	}
	if len(prefixMatches) > 1 {
		return ToolValidation{Valid: false, Reason: "ambiguous prefix match: " + strings.Join(prefixMatches, ", ")}
	}

	return ToolValidation{Valid: false, Reason: "no tool named " + name + " is registered"}
}

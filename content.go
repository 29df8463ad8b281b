package llmrt

// Speaker identifies who produced a Content turn.
type Speaker string

const (
	SpeakerHuman  Speaker = "human"
	SpeakerAI     Speaker = "ai"
	SpeakerTool   Speaker = "tool"
	SpeakerSystem Speaker = "system"
)

// Content is the system's neutral conversation element. It is immutable
// once appended to a history: adapters and the repair pass only ever
// produce new Content values, never mutate one in place.
type Content struct {
	Speaker  Speaker
	Blocks   []Block
	Metadata map[string]any
}

// Usage summarizes token accounting for a single call. At most one Content
// in a stream carries a non-nil Usage in its metadata (normally attached to
// the final chunk).
type Usage struct {
	PromptTokens        int
	CompletionTokens     int
	TotalTokens          int
	CachedTokens         int
	CacheCreationTokens  int
	CacheMissTokens      int
}

const metadataUsageKey = "usage"
const metadataSyntheticKey = "synthetic"

// WithUsage returns a copy of c with metadata.usage set.
func (c Content) WithUsage(u Usage) Content {
	out := c.Clone()
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	out.Metadata[metadataUsageKey] = u
	return out
}

// IsSynthetic reports whether this Content was injected by the repair pass
// rather than produced by a real model turn.
func (c Content) IsSynthetic() bool {
	if c.Metadata == nil {
		return false
	}
	v, ok := c.Metadata[metadataSyntheticKey]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Clone returns a deep copy of c: its block list and metadata map are
// independent of the original.
func (c Content) Clone() Content {
	out := Content{Speaker: c.Speaker}
	if c.Blocks != nil {
		out.Blocks = make([]Block, len(c.Blocks))
		for i, b := range c.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	if c.Metadata != nil {
		out.Metadata = cloneJSONMap(c.Metadata)
	}
	return out
}

// TextBlocks concatenates the text of every TextBlock in c, in order,
// skipping Media/ToolCall/ToolResponse/Thinking blocks.
func (c Content) TextBlocks() string {
	var out string
	for _, b := range c.Blocks {
		if b.Kind == BlockText && b.Text != nil {
			out += b.Text.Text
		}
	}
	return out
}

// ToolCalls returns every ToolCallBlock present in c, in block order.
func (c Content) ToolCalls() []*ToolCallBlock {
	var out []*ToolCallBlock
	for _, b := range c.Blocks {
		if b.Kind == BlockToolCall && b.ToolCall != nil {
			out = append(out, b.ToolCall)
		}
	}
	return out
}

// ToolResponses returns every ToolResponseBlock present in c, in block order.
func (c Content) ToolResponses() []*ToolResponseBlock {
	var out []*ToolResponseBlock
	for _, b := range c.Blocks {
		if b.Kind == BlockToolResponse && b.ToolResponse != nil {
			out = append(out, b.ToolResponse)
		}
	}
	return out
}

// History is an ordered sequence of Content turns.
type History []Content

// Clone returns a deep copy of the history.
func (h History) Clone() History {
	out := make(History, len(h))
	for i, c := range h {
		out[i] = c.Clone()
	}
	return out
}

package llmrt

// BlockKind identifies which pointer field of a Block carries its payload;
// callers switch on it.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockMedia
	BlockToolCall
	BlockToolResponse
	BlockThinking
)

func (k BlockKind) String() string {
	switch k {
	case BlockText:
		return "text"
	case BlockMedia:
		return "media"
	case BlockToolCall:
		return "tool_call"
	case BlockToolResponse:
		return "tool_response"
	case BlockThinking:
		return "thinking"
	default:
		return "unknown"
	}
}

// Encoding describes how Media.Data is encoded.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingURL    Encoding = "url"
)

// Block is the neutral representation of one piece of a turn. Only the
// field matching Kind is meaningful; readers must check Kind first.
type Block struct {
	Kind BlockKind

	Text *TextBlock

	Media *MediaBlock

	ToolCall *ToolCallBlock

	ToolResponse *ToolResponseBlock

	Thinking *ThinkingBlock
}

// TextBlock carries plain text.
type TextBlock struct {
	Text string
}

// MediaBlock carries an inline or referenced media payload.
type MediaBlock struct {
	MimeType string
	Data     string
	Encoding Encoding
}

// ToolCallBlock is a request, made by the assistant, to invoke a tool.
// ID is always canonical (hist_tool_*) once stored on a Content — see
// toolid.go. Parameters is the decoded JSON object the tool should receive.
type ToolCallBlock struct {
	ID         string
	Name       string
	Parameters map[string]any
}

// ToolResponseBlock is the result of executing a ToolCallBlock. CallID must
// reference a ToolCallBlock.ID on the same history, except when freshly
// inserted by the synthetic repair pass (repair.go).
type ToolResponseBlock struct {
	CallID   string
	ToolName string
	Result   any
	IsError  bool
	Error    string
}

// ThinkingBlock carries a reasoning trace, when the provider exposes one.
type ThinkingBlock struct {
	Text string
}

func NewTextBlock(text string) Block {
	return Block{Kind: BlockText, Text: &TextBlock{Text: text}}
}

func NewMediaBlock(mimeType, data string, encoding Encoding) Block {
	return Block{Kind: BlockMedia, Media: &MediaBlock{MimeType: mimeType, Data: data, Encoding: encoding}}
}

func NewToolCallBlock(id, name string, parameters map[string]any) Block {
	return Block{Kind: BlockToolCall, ToolCall: &ToolCallBlock{ID: id, Name: name, Parameters: parameters}}
}

func NewToolResponseBlock(callID, toolName string, result any, isError bool, errMsg string) Block {
	return Block{
		Kind: BlockToolResponse,
		ToolResponse: &ToolResponseBlock{
			CallID:   callID,
			ToolName: toolName,
			Result:   result,
			IsError:  isError,
			Error:    errMsg,
		},
	}
}

func NewThinkingBlock(text string) Block {
	return Block{Kind: BlockThinking, Thinking: &ThinkingBlock{Text: text}}
}

// Clone returns a deep copy of the block, including nested maps.
func (b Block) Clone() Block {
	out := Block{Kind: b.Kind}
	switch b.Kind {
	case BlockText:
		if b.Text != nil {
			t := *b.Text
			out.Text = &t
		}
	case BlockMedia:
		if b.Media != nil {
			m := *b.Media
			out.Media = &m
		}
	case BlockToolCall:
		if b.ToolCall != nil {
			tc := *b.ToolCall
			tc.Parameters = cloneJSONMap(b.ToolCall.Parameters)
			out.ToolCall = &tc
		}
	case BlockToolResponse:
		if b.ToolResponse != nil {
			tr := *b.ToolResponse
			tr.Result = cloneJSONValue(b.ToolResponse.Result)
			out.ToolResponse = &tr
		}
	case BlockThinking:
		if b.Thinking != nil {
			th := *b.Thinking
			out.Thinking = &th
		}
	}
	return out
}

func cloneJSONMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func cloneJSONValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return cloneJSONMap(vv)
	case []any:
		arr := make([]any, len(vv))
		for i, e := range vv {
			arr[i] = cloneJSONValue(e)
		}
		return arr
	default:
		return v
	}
}

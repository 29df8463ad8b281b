package providers

import (
	"encoding/json"
	"fmt"

	"github.com/taipm/llmrt"
)

// marshalArgs serializes a ToolCall's Parameters back to a JSON string for
// wire formats (OpenAI, Responses) that carry tool arguments as a raw
// string rather than a nested object.
func marshalArgs(params map[string]any) string {
	if params == nil {
		return "{}"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// parseArgs is the inverse of marshalArgs for a complete non-streaming
// argument string (llmrt.ToolCallAccumulator handles the streaming case).
// Malformed input or a non-object yields an empty map; unlike the streaming
// pipeline's parseToolArgs, it neither repairs the string nor wraps it as
// {"value": ...}.
func parseArgs(raw string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// retryOpts builds the retry envelope every adapter issues its HTTP calls
// through (§4.F item 5): classification stays the §4.E default table, the
// bucket-failover escalation comes from call.Failover via RetryWithFailover,
// and logging defaults to NoopLogger when the adapter wasn't given one.
func retryOpts(logger llmrt.Logger) llmrt.RetryOptions {
	if logger == nil {
		logger = &llmrt.NoopLogger{}
	}
	return llmrt.RetryOptions{Logger: logger}
}

// resultToText renders a ToolResponseBlock's Result as the plain string
// most wire formats expect for a tool/function output.
func resultToText(tr *llmrt.ToolResponseBlock) string {
	if tr.IsError {
		if tr.Error != "" {
			return tr.Error
		}
		return "tool execution failed"
	}
	switch v := tr.Result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

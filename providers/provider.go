// Package providers implements the per-provider adapters of the client
// runtime core: each Adapter translates a neutral ResolvedCall into wire
// requests against one upstream LLM family and translates the response
// stream back into neutral Content values.
package providers

import (
	"context"

	"github.com/taipm/llmrt"
)

// ToolFormat identifies the wire shape a provider expects tool declarations
// and tool calls in.
type ToolFormat string

const (
	ToolFormatOpenAI    ToolFormat = "openai"
	ToolFormatAnthropic ToolFormat = "anthropic"
	ToolFormatGemini    ToolFormat = "gemini"
)

// ModelInfo describes one model a provider exposes.
type ModelInfo struct {
	ID          string
	DisplayName string
	ContextSize int
}

// Adapter is the per-provider contract of §4.F. Implementations are
// stateless between calls: no field may carry cross-call resolved data
// (§4.G, §5, §8 property 5). Concurrent Generate calls on the same Adapter
// instance must never observe each other's ResolvedCall.
type Adapter interface {
	// Generate issues the call described by call and returns a channel of
	// neutral Content chunks plus an error channel with at most one error.
	// The returned channels are closed when the stream ends, whether
	// successfully, by error, or by ctx cancellation.
	Generate(ctx context.Context, call *llmrt.ResolvedCall) (<-chan llmrt.Content, <-chan error)

	// GetModels lists available models. Implementations wrap the upstream
	// call in the retry/failover envelope themselves (§4.E, §4.F item 5).
	GetModels(ctx context.Context, call *llmrt.ResolvedCall) ([]ModelInfo, error)

	GetDefaultModel() string
	GetToolFormat() ToolFormat
	SupportsOAuth() bool
	IsAuthenticated(call *llmrt.ResolvedCall) bool
	Name() string
}

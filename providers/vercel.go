package providers

import (
	"context"
	"os"

	"github.com/taipm/llmrt"
)

const vercelDefaultBaseURL = "https://ai-gateway.vercel.sh/v1"

// VercelAdapter targets Vercel's AI Gateway, which exposes an
// OpenAI-compatible Chat Completions surface: request/response conversion
// is delegated to an embedded OpenAIChatAdapter, with the gateway's default
// base URL and observability headers layered on top.
type VercelAdapter struct {
	*OpenAIChatAdapter
}

func NewVercelAdapter(defaultModel string) *VercelAdapter {
	if defaultModel == "" {
		defaultModel = "anthropic/claude-sonnet-4-5"
	}
	return &VercelAdapter{OpenAIChatAdapter: NewOpenAIChatAdapter(defaultModel)}
}

func (a *VercelAdapter) Name() string { return "vercel" }

func (a *VercelAdapter) IsAuthenticated(call *llmrt.ResolvedCall) bool {
	return call != nil && call.AuthToken != ""
}

func (a *VercelAdapter) GetModels(ctx context.Context, call *llmrt.ResolvedCall) ([]ModelInfo, error) {
	return a.OpenAIChatAdapter.GetModels(ctx, withVercelDefaults(call))
}

func (a *VercelAdapter) Generate(ctx context.Context, call *llmrt.ResolvedCall) (<-chan llmrt.Content, <-chan error) {
	return a.OpenAIChatAdapter.Generate(ctx, withVercelDefaults(call))
}

// withVercelDefaults returns a shallow copy of call with the gateway's
// default base URL and deployment observability headers applied, leaving
// the caller-resolved call untouched (§4.G statelessness: adapters never
// mutate the ResolvedCall they were handed).
func withVercelDefaults(call *llmrt.ResolvedCall) *llmrt.ResolvedCall {
	out := *call
	if out.BaseURL == "" {
		out.BaseURL = vercelDefaultBaseURL
	}

	headers := make(map[string]string, len(call.Headers)+5)
	for k, v := range call.Headers {
		headers[k] = v
	}
	addO11yHeaders(headers)
	out.Headers = headers

	return &out
}

func addO11yHeaders(headers map[string]string) {
	if v := os.Getenv("VERCEL_DEPLOYMENT_ID"); v != "" {
		headers["ai-o11y-deployment-id"] = v
	}
	if v := os.Getenv("VERCEL_ENV"); v != "" {
		headers["ai-o11y-environment"] = v
	}
	if v := os.Getenv("VERCEL_REGION"); v != "" {
		headers["ai-o11y-region"] = v
	}
	if v := os.Getenv("VERCEL_PROJECT_ID"); v != "" {
		headers["ai-o11y-project-id"] = v
	}
}

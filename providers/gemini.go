package providers

import (
	"context"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/taipm/llmrt"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiAdapter wraps the Google Generative AI Go SDK. Gemini differs from
// the OpenAI-shaped providers in several ways the conversion below follows:
// system prompt via SystemInstruction, roles "user"/"model", temperature
// clamped to [0,1], and content built from Parts rather than flat strings.
type GeminiAdapter struct {
	DefaultModel string
	Logger       llmrt.Logger

	// OAuthCodeAssist, when true, routes calls through the OAuth-backed
	// "code assist" path instead of a plain API key. The session ID used
	// on that path must embed the call's RuntimeID so concurrent calls in
	// distinct runtimes never share a server-side session (§4.F, §9).
	OAuthCodeAssist bool
}

func NewGeminiAdapter(defaultModel string) *GeminiAdapter {
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	return &GeminiAdapter{DefaultModel: defaultModel, Logger: &llmrt.NoopLogger{}}
}

func (a *GeminiAdapter) Name() string             { return "gemini" }
func (a *GeminiAdapter) GetDefaultModel() string   { return a.DefaultModel }
func (a *GeminiAdapter) GetToolFormat() ToolFormat { return ToolFormatGemini }
func (a *GeminiAdapter) SupportsOAuth() bool       { return true }
func (a *GeminiAdapter) IsAuthenticated(call *llmrt.ResolvedCall) bool {
	return call != nil && call.AuthToken != ""
}

// codeAssistSessionID derives the server session identifier for the OAuth
// code-assist path, embedding RuntimeID so two concurrent runtimes never
// collide on the same upstream session.
func codeAssistSessionID(runtimeID string) string {
	return "code-assist-" + runtimeID
}

// codeAssistTransport routes calls through the OAuth-backed "code assist"
// path: every request carries the caller's bearer token and the
// runtime-scoped session ID, so concurrent calls from distinct runtimes
// never collide on the same upstream session (§4.F, §9).
type codeAssistTransport struct {
	token     string
	sessionID string
	base      http.RoundTripper
}

func (t *codeAssistTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("X-Goog-Code-Assist-Session", t.sessionID)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

func (a *GeminiAdapter) client(ctx context.Context, call *llmrt.ResolvedCall) (*genai.Client, error) {
	var opts []option.ClientOption
	if a.OAuthCodeAssist {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Transport: &codeAssistTransport{
				token:     call.AuthToken,
				sessionID: codeAssistSessionID(call.RuntimeID),
				base:      http.DefaultTransport,
			},
		}))
	} else {
		opts = append(opts, option.WithAPIKey(call.AuthToken))
	}
	if call.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(call.BaseURL))
	}
	return genai.NewClient(ctx, opts...)
}

func (a *GeminiAdapter) GetModels(ctx context.Context, call *llmrt.ResolvedCall) ([]ModelInfo, error) {
	return llmrt.RetryWithFailover(ctx, call, retryOpts(a.Logger), func(ctx context.Context) ([]ModelInfo, error) {
		client, err := a.client(ctx, call)
		if err != nil {
			return nil, llmrt.NewAuthenticationError("gemini", "failed to create client", 0, err)
		}
		defer client.Close()

		iter := client.ListModels(ctx)
		var out []ModelInfo
		for {
			m, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, llmrt.NewTransientUpstream("gemini", 0, err)
			}
			out = append(out, ModelInfo{ID: m.Name, DisplayName: m.DisplayName})
		}
		return out, nil
	})
}

func (a *GeminiAdapter) Generate(ctx context.Context, call *llmrt.ResolvedCall) (<-chan llmrt.Content, <-chan error) {
	contentCh := make(chan llmrt.Content)
	errCh := make(chan error, 1)

	go func() {
		_, err := llmrt.RetryWithFailover(ctx, call, retryOpts(a.Logger), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.runGenerate(ctx, call, contentCh)
		})
		if err != nil {
			errCh <- err
		}
		close(contentCh)
		close(errCh)
	}()

	return contentCh, errCh
}

// runGenerate issues one attempt of the streamed call (§4.E end-to-end
// re-attempt on a retryable failure).
func (a *GeminiAdapter) runGenerate(ctx context.Context, call *llmrt.ResolvedCall, contentCh chan<- llmrt.Content) error {
	client, err := a.client(ctx, call)
	if err != nil {
		return llmrt.NewAuthenticationError("gemini", "failed to create client", 0, err)
	}
	defer client.Close()

	modelName := call.Model
	if modelName == "" {
		modelName = a.DefaultModel
	}
	model := client.GenerativeModel(modelName)
	a.configureModel(model, call)

	history, lastTurn := a.convertHistory(call.Contents)
	cs := model.StartChat()
	cs.History = history

	iter := cs.SendMessageStream(ctx, lastTurn...)
	var usage *llmrt.Usage
	for {
		select {
		case <-ctx.Done():
			return llmrt.NewCancelled("gemini")
		default:
		}

		chunk, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return llmrt.NewStreamInterrupted("gemini", err)
		}

		if len(chunk.Candidates) == 0 {
			continue
		}
		candidate := chunk.Candidates[0]
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				contentCh <- llmrt.Content{
					Speaker: llmrt.SpeakerAI,
					Blocks:  []llmrt.Block{llmrt.NewTextBlock(string(p))},
				}
			case genai.FunctionCall:
				args := map[string]any(p.Args)
				contentCh <- llmrt.Content{
					Speaker: llmrt.SpeakerAI,
					Blocks:  []llmrt.Block{llmrt.NewToolCallBlock(llmrt.ToHistoryID(p.Name), p.Name, args)},
				}
			}
		}

		if chunk.UsageMetadata != nil {
			u := llmrt.Usage{
				PromptTokens:     int(chunk.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(chunk.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(chunk.UsageMetadata.TotalTokenCount),
			}
			if chunk.UsageMetadata.CachedContentTokenCount > 0 {
				u.CachedTokens = int(chunk.UsageMetadata.CachedContentTokenCount)
			}
			usage = &u
		}
	}

	if usage != nil {
		contentCh <- llmrt.Content{Speaker: llmrt.SpeakerAI}.WithUsage(*usage)
	}
	return nil
}

func (a *GeminiAdapter) configureModel(model *genai.GenerativeModel, call *llmrt.ResolvedCall) {
	for _, c := range call.Contents {
		if c.Speaker == llmrt.SpeakerSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(c.TextBlocks())}}
		}
	}

	if v, ok := call.ModelParams["temperature"].(float64); ok {
		temp := float32(v)
		if temp > 1.0 {
			temp = 1.0
		}
		if temp < 0 {
			temp = 0
		}
		model.SetTemperature(temp)
	}
	if v, ok := call.ModelParams["max_tokens"].(int); ok && v > 0 {
		model.SetMaxOutputTokens(int32(v))
	}
	if v, ok := call.ModelParams["top_p"].(float64); ok {
		model.SetTopP(float32(v))
	}

	tools := a.convertTools(call.Tools)
	// Server tools are always available alongside any declared function tools (§4.F).
	tools = append(tools, &genai.Tool{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}})
	model.Tools = tools
}

// convertHistory splits neutral History into Gemini's chat history plus the
// final turn to send via SendMessageStream, mapping human→user, ai→model,
// and tool responses into functionResponse parts attached to a user turn.
func (a *GeminiAdapter) convertHistory(h llmrt.History) ([]*genai.Content, []genai.Part) {
	var history []*genai.Content

	for i, c := range h {
		last := i == len(h)-1

		var role string
		var parts []genai.Part

		switch c.Speaker {
		case llmrt.SpeakerHuman:
			role = "user"
			if text := c.TextBlocks(); text != "" {
				parts = append(parts, genai.Text(text))
			}
		case llmrt.SpeakerAI:
			role = "model"
			if text := c.TextBlocks(); text != "" {
				parts = append(parts, genai.Text(text))
			}
			for _, tc := range c.ToolCalls() {
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Parameters})
			}
		case llmrt.SpeakerTool:
			role = "user"
			for _, tr := range c.ToolResponses() {
				parts = append(parts, genai.FunctionResponse{
					Name:     tr.ToolName,
					Response: map[string]any{"result": tr.Result},
				})
			}
		case llmrt.SpeakerSystem:
			continue
		}

		if len(parts) == 0 {
			continue
		}

		if last {
			return history, parts
		}
		history = append(history, &genai.Content{Role: role, Parts: parts})
	}

	return history, nil
}

func (a *GeminiAdapter) convertTools(decls []*llmrt.ToolDeclaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}
	funcs := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		funcs = append(funcs, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  jsonSchemaToGenaiSchema(d.ToJSONSchema()),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcs}}
}

func jsonSchemaToGenaiSchema(schema map[string]any) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeObject}
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return s
	}
	s.Properties = make(map[string]*genai.Schema, len(props))
	for name, raw := range props {
		propMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		s.Properties[name] = &genai.Schema{
			Type:        genaiTypeFor(propMap["type"]),
			Description: stringOr(propMap["description"]),
		}
	}
	if req, ok := schema["required"].([]string); ok {
		s.Required = req
	}
	return s
}

func genaiTypeFor(t any) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

package providers

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/taipm/llmrt"
)

// OpenAIChatAdapter wraps the OpenAI Go SDK's Chat Completions endpoint.
// It also serves OpenAI-compatible endpoints (Ollama, Azure OpenAI,
// Deepseek) reached via a custom base URL.
type OpenAIChatAdapter struct {
	DefaultModel string
	Logger       llmrt.Logger
}

func NewOpenAIChatAdapter(defaultModel string) *OpenAIChatAdapter {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIChatAdapter{DefaultModel: defaultModel, Logger: &llmrt.NoopLogger{}}
}

func (a *OpenAIChatAdapter) Name() string               { return "openai" }
func (a *OpenAIChatAdapter) GetDefaultModel() string     { return a.DefaultModel }
func (a *OpenAIChatAdapter) GetToolFormat() ToolFormat   { return ToolFormatOpenAI }
func (a *OpenAIChatAdapter) SupportsOAuth() bool         { return false }
func (a *OpenAIChatAdapter) IsAuthenticated(call *llmrt.ResolvedCall) bool {
	return call != nil && call.AuthToken != ""
}

func (a *OpenAIChatAdapter) client(call *llmrt.ResolvedCall) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(call.AuthToken)}
	if call.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(call.BaseURL))
	}
	for k, v := range call.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	client := openai.NewClient(opts...)
	return &client
}

func (a *OpenAIChatAdapter) GetModels(ctx context.Context, call *llmrt.ResolvedCall) ([]ModelInfo, error) {
	return llmrt.RetryWithFailover(ctx, call, retryOpts(a.Logger), func(ctx context.Context) ([]ModelInfo, error) {
		client := a.client(call)
		page, err := client.Models.List(ctx)
		if err != nil {
			return nil, wrapOpenAIErr(err, "openai")
		}
		var out []ModelInfo
		for _, m := range page.Data {
			out = append(out, ModelInfo{ID: m.ID})
		}
		return out, nil
	})
}

func (a *OpenAIChatAdapter) Generate(ctx context.Context, call *llmrt.ResolvedCall) (<-chan llmrt.Content, <-chan error) {
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

// runGenerate issues one attempt of the call (§4.E end-to-end re-attempt):
// a retryable failure here — including one raised partway through the
// streamed body — causes RetryWithFailover to re-issue the whole request,
// so a consumer may see a duplicated prefix across attempts (§9 open
// question on stream-restart dedup; no exactly-once guarantee is made).
func (a *OpenAIChatAdapter) runGenerate(ctx context.Context, call *llmrt.ResolvedCall, contentCh chan<- llmrt.Content) error {
	params := a.buildParams(call)
	client := a.client(call)

	if !call.View.Streaming() {
		completion, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return wrapOpenAIErr(err, "openai")
		}
		contentCh <- a.convertCompletion(completion)
		return nil
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	acc := llmrt.NewToolCallAccumulator()
	var usage *llmrt.Usage

	for stream.Next() {
		select {
		case <-ctx.Done():
			return llmrt.NewCancelled("")
		default:
		}

		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			contentCh <- llmrt.Content{
				Speaker: llmrt.SpeakerAI,
				Blocks:  []llmrt.Block{llmrt.NewTextBlock(delta.Content)},
			}
		}

		for _, tc := range delta.ToolCalls {
			acc.Add(llmrt.ToolCallFragment{
				Index:     int(tc.Index),
				ID:        llmrt.ToHistoryID(tc.ID),
				Name:      tc.Function.Name,
				ArgsChunk: tc.Function.Arguments,
			})
		}

		if chunk.Usage.TotalTokens > 0 {
			usage = &llmrt.Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
				CachedTokens:     int(chunk.Usage.PromptTokensDetails.CachedTokens),
			}
		}
	}

	if err := stream.Err(); err != nil {
		return llmrt.NewStreamInterrupted("openai", err)
	}

	for _, tc := range acc.Finalize() {
		contentCh <- llmrt.Content{
			Speaker: llmrt.SpeakerAI,
			Blocks:  []llmrt.Block{llmrt.NewToolCallBlock(tc.ID, tc.Name, tc.Args)},
		}
	}

	if usage != nil {
		contentCh <- llmrt.Content{Speaker: llmrt.SpeakerAI}.WithUsage(*usage)
	}

	return nil
}

func (a *OpenAIChatAdapter) buildParams(call *llmrt.ResolvedCall) openai.ChatCompletionNewParams {
	model := call.Model
	if model == "" {
		model = a.DefaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: a.convertHistory(call.Contents),
	}

	if v, ok := call.ModelParams["temperature"].(float64); ok {
		params.Temperature = openai.Float(v)
	}
	if v, ok := call.ModelParams["max_tokens"].(int); ok {
		params.MaxTokens = openai.Int(int64(v))
	}
	if v, ok := call.ModelParams["top_p"].(float64); ok {
		params.TopP = openai.Float(v)
	}
	if len(call.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolUnionParam, len(call.Tools))
		for i, t := range call.Tools {
			tools[i] = t.ToOpenAI()
		}
		params.Tools = tools
	}

	return params
}

// convertHistory maps neutral History onto OpenAI's chat message shape:
// human→user, ai→assistant (with tool_calls[] for ToolCall blocks),
// tool→tool (with tool_call_id), system→system (§4.F).
func (a *OpenAIChatAdapter) convertHistory(h llmrt.History) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	for _, c := range h {
		switch c.Speaker {
		case llmrt.SpeakerHuman:
			messages = append(messages, openai.UserMessage(c.TextBlocks()))
		case llmrt.SpeakerSystem:
			messages = append(messages, openai.SystemMessage(c.TextBlocks()))
		case llmrt.SpeakerAI:
			msg := openai.AssistantMessage(c.TextBlocks())
			var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
			for _, tc := range c.ToolCalls() {
				argsJSON := marshalArgs(tc.Parameters)
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: llmrt.ToOpenAIID(tc.ID),
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: argsJSON,
						},
					},
				})
			}
			if len(toolCalls) > 0 {
				if p := msg.OfAssistant; p != nil {
					p.ToolCalls = toolCalls
				}
			}
			messages = append(messages, msg)
		case llmrt.SpeakerTool:
			for _, tr := range c.ToolResponses() {
				messages = append(messages, openai.ToolMessage(resultToText(tr), llmrt.ToOpenAIID(tr.CallID)))
			}
		}
	}

	return messages
}

func (a *OpenAIChatAdapter) convertCompletion(completion *openai.ChatCompletion) llmrt.Content {
	c := llmrt.Content{Speaker: llmrt.SpeakerAI}
	if len(completion.Choices) == 0 {
		return c
	}
	msg := completion.Choices[0].Message
	if msg.Content != "" {
		c.Blocks = append(c.Blocks, llmrt.NewTextBlock(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		c.Blocks = append(c.Blocks, llmrt.NewToolCallBlock(
			llmrt.ToHistoryID(tc.ID), tc.Function.Name, parseArgs(tc.Function.Arguments)))
	}
	c = c.WithUsage(llmrt.Usage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		CachedTokens:     int(completion.Usage.PromptTokensDetails.CachedTokens),
	})
	return c
}

func wrapOpenAIErr(err error, provider string) error {
	return llmrt.NewTransientUpstream(provider, 0, err)
}

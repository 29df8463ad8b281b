package providers

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/taipm/llmrt"
)

const codexBaseURLMarker = "chatgpt.com/backend-api/codex"

// OpenAIResponsesAdapter targets the OpenAI Responses endpoint, including
// its Codex-over-ChatGPT variant: the same wire shape, reached through an
// OAuth-authenticated ChatGPT backend instead of a plain API key, with the
// request rewrites applied below when isCodexMode reports true (§4.F item 3, example (d)).
type OpenAIResponsesAdapter struct {
	DefaultModel string
	Logger       llmrt.Logger
}

func NewOpenAIResponsesAdapter(defaultModel string) *OpenAIResponsesAdapter {
	if defaultModel == "" {
		defaultModel = "gpt-5"
	}
	return &OpenAIResponsesAdapter{DefaultModel: defaultModel, Logger: &llmrt.NoopLogger{}}
}

func (a *OpenAIResponsesAdapter) Name() string             { return "openai-responses" }
func (a *OpenAIResponsesAdapter) GetDefaultModel() string   { return a.DefaultModel }
func (a *OpenAIResponsesAdapter) GetToolFormat() ToolFormat { return ToolFormatOpenAI }
func (a *OpenAIResponsesAdapter) SupportsOAuth() bool       { return true }
func (a *OpenAIResponsesAdapter) IsAuthenticated(call *llmrt.ResolvedCall) bool {
	return call != nil && call.AuthToken != ""
}

func (a *OpenAIResponsesAdapter) isCodexMode(call *llmrt.ResolvedCall) bool {
	return strings.Contains(call.BaseURL, codexBaseURLMarker)
}

func (a *OpenAIResponsesAdapter) client(call *llmrt.ResolvedCall) (*openai.Client, []option.RequestOption) {
	opts := []option.RequestOption{option.WithAPIKey(call.AuthToken)}
	if call.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(call.BaseURL))
	}
	for k, v := range call.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	var reqOpts []option.RequestOption
	if a.isCodexMode(call) {
		reqOpts = append(reqOpts,
			option.WithHeader("Content-Type", "application/json"),
			option.WithHeader("originator", "codex_cli_rs"),
			option.WithHeader("ChatGPT-Account-ID", chatgptAccountID(call.AuthToken)),
		)
	}

	client := openai.NewClient(opts...)
	return &client, reqOpts
}

// chatgptAccountID extracts the account ID embedded in a ChatGPT OAuth
// access token's JWT payload (the "chatgpt_account_id" claim). The token is
// never validated here, only decoded: verification happened at issuance.
func chatgptAccountID(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}
	const marker = `"chatgpt_account_id":"`
	idx := strings.Index(string(payload), marker)
	if idx < 0 {
		return ""
	}
	rest := string(payload)[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func (a *OpenAIResponsesAdapter) GetModels(ctx context.Context, call *llmrt.ResolvedCall) ([]ModelInfo, error) {
	return llmrt.RetryWithFailover(ctx, call, retryOpts(a.Logger), func(ctx context.Context) ([]ModelInfo, error) {
		client, _ := a.client(call)
		page, err := client.Models.List(ctx)
		if err != nil {
			return nil, wrapOpenAIErr(err, a.Name())
		}
		var out []ModelInfo
		for _, m := range page.Data {
			out = append(out, ModelInfo{ID: m.ID})
		}
		return out, nil
	})
}

func (a *OpenAIResponsesAdapter) Generate(ctx context.Context, call *llmrt.ResolvedCall) (<-chan llmrt.Content, <-chan error) {
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
func (a *OpenAIResponsesAdapter) runGenerate(ctx context.Context, call *llmrt.ResolvedCall, contentCh chan<- llmrt.Content) error {
	client, reqOpts := a.client(call)
	params := a.buildParams(call)

	stream := client.Responses.NewStreaming(ctx, params, reqOpts...)
	acc := llmrt.NewToolCallAccumulator()
	var usage *llmrt.Usage

	for stream.Next() {
		select {
		case <-ctx.Done():
			return llmrt.NewCancelled(a.Name())
		default:
		}

		event := stream.Current()
		switch event.Type {
		case "response.output_text.delta":
			delta := event.AsResponseOutputTextDelta()
			if delta.Delta != "" {
				contentCh <- llmrt.Content{
					Speaker: llmrt.SpeakerAI,
					Blocks:  []llmrt.Block{llmrt.NewTextBlock(delta.Delta)},
				}
			}

		case "response.output_item.added":
			added := event.AsResponseOutputItemAdded()
			if fc, ok := added.Item.AsAny().(responses.ResponseFunctionToolCall); ok {
				acc.Add(llmrt.ToolCallFragment{Index: int(added.OutputIndex), ID: llmrt.ToHistoryID(fc.CallID), Name: fc.Name})
			}

		case "response.function_call_arguments.delta":
			delta := event.AsResponseFunctionCallArgumentsDelta()
			acc.Add(llmrt.ToolCallFragment{Index: int(delta.OutputIndex), ArgsChunk: delta.Delta})

		case "response.completed":
			completed := event.AsResponseCompleted()
			if u := completed.Response.Usage; u.TotalTokens > 0 {
				usage = &llmrt.Usage{
					PromptTokens:     int(u.InputTokens),
					CompletionTokens: int(u.OutputTokens),
					TotalTokens:      int(u.TotalTokens),
					CachedTokens:     int(u.InputTokensDetails.CachedTokens),
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return llmrt.NewStreamInterrupted(a.Name(), err)
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

func (a *OpenAIResponsesAdapter) buildParams(call *llmrt.ResolvedCall) responses.ResponseNewParams {
	model := call.Model
	if model == "" {
		model = a.DefaultModel
	}
	codex := a.isCodexMode(call)

	params := responses.ResponseNewParams{
		Model: responses.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: a.convertHistory(call.Contents, codex),
		},
	}

	if codex {
		params.Store = openai.Bool(false)
		for _, c := range call.Contents {
			if c.Speaker == llmrt.SpeakerSystem {
				params.Instructions = openai.String(c.TextBlocks())
			}
		}
	} else if v, ok := call.ModelParams["max_tokens"].(int); ok && v > 0 {
		params.MaxOutputTokens = openai.Int(int64(v))
	}

	if v, ok := call.ModelParams["temperature"].(float64); ok {
		params.Temperature = openai.Float(v)
	}

	if len(call.Tools) > 0 {
		tools := make([]responses.ToolUnionParam, len(call.Tools))
		for i, t := range call.Tools {
			schema := t.ToJSONSchema()
			tools[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  schema,
				},
			}
		}
		params.Tools = tools
	}

	return params
}

// convertHistory builds the Responses API's flat input[] item list. In
// codex mode the system turn is emitted via Instructions instead, so no
// role:"system" item is ever produced (§4.F example (d)).
func (a *OpenAIResponsesAdapter) convertHistory(h llmrt.History, codex bool) []responses.ResponseInputItemUnionParam {
	var items []responses.ResponseInputItemUnionParam

	for _, c := range h {
		switch c.Speaker {
		case llmrt.SpeakerHuman:
			if text := c.TextBlocks(); text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser))
			}
		case llmrt.SpeakerSystem:
			if codex {
				continue
			}
			if text := c.TextBlocks(); text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleSystem))
			}
		case llmrt.SpeakerAI:
			if text := c.TextBlocks(); text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range c.ToolCalls() {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(
					marshalArgs(tc.Parameters), llmrt.ToOpenAIID(tc.ID), tc.Name))
			}
		case llmrt.SpeakerTool:
			for _, tr := range c.ToolResponses() {
				items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(
					llmrt.ToOpenAIID(tr.CallID), resultToText(tr)))
			}
		}
	}

	return items
}

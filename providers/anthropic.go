package providers

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/taipm/llmrt"
)

const anthropicDefaultMaxTokens = 8192

// AnthropicAdapter wraps the official Anthropic Go SDK.
type AnthropicAdapter struct {
	DefaultModel string
	Logger       llmrt.Logger
}

func NewAnthropicAdapter(defaultModel string) *AnthropicAdapter {
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-5"
	}
	return &AnthropicAdapter{DefaultModel: defaultModel, Logger: &llmrt.NoopLogger{}}
}

func (a *AnthropicAdapter) Name() string             { return "anthropic" }
func (a *AnthropicAdapter) GetDefaultModel() string   { return a.DefaultModel }
func (a *AnthropicAdapter) GetToolFormat() ToolFormat { return ToolFormatAnthropic }
func (a *AnthropicAdapter) SupportsOAuth() bool       { return false }
func (a *AnthropicAdapter) IsAuthenticated(call *llmrt.ResolvedCall) bool {
	return call != nil && call.AuthToken != ""
}

func (a *AnthropicAdapter) client(call *llmrt.ResolvedCall) anthropic.Client {
	opts := []option.RequestOption{option.WithAPIKey(call.AuthToken)}
	if call.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(call.BaseURL))
	}
	return anthropic.NewClient(opts...)
}

func (a *AnthropicAdapter) GetModels(ctx context.Context, call *llmrt.ResolvedCall) ([]ModelInfo, error) {
	return llmrt.RetryWithFailover(ctx, call, retryOpts(a.Logger), func(ctx context.Context) ([]ModelInfo, error) {
		client := a.client(call)
		page, err := client.Models.List(ctx, anthropic.ModelListParams{})
		if err != nil {
			return nil, llmrt.NewTransientUpstream("anthropic", 0, err)
		}
		var out []ModelInfo
		for _, m := range page.Data {
			out = append(out, ModelInfo{ID: m.ID, DisplayName: m.DisplayName})
		}
		return out, nil
	})
}

func (a *AnthropicAdapter) Generate(ctx context.Context, call *llmrt.ResolvedCall) (<-chan llmrt.Content, <-chan error) {
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
// re-attempt on a retryable failure). Usage is accumulated across
// message_start and message_delta and emitted as exactly one summary chunk
// right before message_stop, satisfying §6's "at most one metadata.usage
// summary content" per stream.
func (a *AnthropicAdapter) runGenerate(ctx context.Context, call *llmrt.ResolvedCall, contentCh chan<- llmrt.Content) error {
	client := a.client(call)
	params := a.buildParams(call)

	stream := client.Messages.NewStreaming(ctx, params)

	var currentToolID, currentToolName string
	var inputBuffer string
	var usage llmrt.Usage
	var haveUsage bool

	for stream.Next() {
		select {
		case <-ctx.Done():
			return llmrt.NewCancelled("anthropic")
		default:
		}

		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			cb := event.AsContentBlockStart()
			if toolUse, ok := cb.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				currentToolID = toolUse.ID
				currentToolName = toolUse.Name
				inputBuffer = ""
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				contentCh <- llmrt.Content{
					Speaker: llmrt.SpeakerAI,
					Blocks:  []llmrt.Block{llmrt.NewTextBlock(d.Text)},
				}
			case anthropic.InputJSONDelta:
				inputBuffer += d.PartialJSON
			case anthropic.ThinkingDelta:
				contentCh <- llmrt.Content{
					Speaker: llmrt.SpeakerAI,
					Blocks:  []llmrt.Block{llmrt.NewThinkingBlock(d.Thinking)},
				}
			}

		case "content_block_stop":
			if currentToolID != "" {
				args := map[string]any{}
				json.Unmarshal([]byte(inputBuffer), &args)
				contentCh <- llmrt.Content{
					Speaker: llmrt.SpeakerAI,
					Blocks:  []llmrt.Block{llmrt.NewToolCallBlock(llmrt.ToHistoryID(currentToolID), currentToolName, args)},
				}
				currentToolID, currentToolName, inputBuffer = "", "", ""
			}

		case "message_start":
			ms := event.AsMessageStart()
			u := ms.Message.Usage
			usage.PromptTokens = int(u.InputTokens)
			usage.CachedTokens = int(u.CacheReadInputTokens)
			usage.CacheCreationTokens = int(u.CacheCreationInputTokens)
			haveUsage = true

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				usage.CompletionTokens = int(md.Usage.OutputTokens)
				haveUsage = true
			}

		case "message_stop":
			if haveUsage {
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
				contentCh <- llmrt.Content{Speaker: llmrt.SpeakerAI}.WithUsage(usage)
			}
			return nil
		}
	}

	if err := stream.Err(); err != nil {
		return llmrt.NewStreamInterrupted("anthropic", err)
	}

	return nil
}

func (a *AnthropicAdapter) buildParams(call *llmrt.ResolvedCall) anthropic.MessageNewParams {
	model := call.Model
	if model == "" {
		model = a.DefaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(anthropicDefaultMaxTokens),
		Messages:  a.convertHistory(call.Contents),
	}

	if v, ok := call.ModelParams["max_tokens"].(int); ok && v > 0 {
		params.MaxTokens = int64(v)
	}
	if v, ok := call.ModelParams["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(v)
	}

	for _, c := range call.Contents {
		if c.Speaker == llmrt.SpeakerSystem {
			params.System = append(params.System, anthropic.TextBlockParam{Text: c.TextBlocks()})
		}
	}

	if len(call.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(call.Tools))
		for _, t := range call.Tools {
			schema := t.ToJSONSchema()
			toolParam := anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
				},
			}
			if required, ok := schema["required"].([]string); ok {
				toolParam.InputSchema.Required = required
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	return params
}

// convertHistory maps neutral History (already orphan-repaired by the
// orchestrator) onto Anthropic's message shape: text + tool_use blocks on
// assistant turns, tool_result blocks on a synthetic user turn (§4.F).
func (a *AnthropicAdapter) convertHistory(h llmrt.History) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, c := range h {
		switch c.Speaker {
		case llmrt.SpeakerHuman:
			text := c.TextBlocks()
			if text == "" {
				continue
			}
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

		case llmrt.SpeakerAI:
			var blocks []anthropic.ContentBlockParamUnion
			if text := c.TextBlocks(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range c.ToolCalls() {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    llmrt.ToAnthropicID(tc.ID),
						Name:  tc.Name,
						Input: tc.Parameters,
					},
				})
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: blocks,
				})
			}

		case llmrt.SpeakerTool:
			var blocks []anthropic.ContentBlockParamUnion
			for _, tr := range c.ToolResponses() {
				blocks = append(blocks, anthropic.NewToolResultBlock(llmrt.ToAnthropicID(tr.CallID), resultToText(tr), tr.IsError))
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewUserMessage(blocks...))
			}

		case llmrt.SpeakerSystem:
			continue
		}
	}

	return result
}

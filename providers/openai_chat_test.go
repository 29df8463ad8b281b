package providers

import (
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/taipm/llmrt"
)

func TestNewOpenAIChatAdapter_DefaultsModel(t *testing.T) {
	a := NewOpenAIChatAdapter("")
	assert.Equal(t, "gpt-4o-mini", a.GetDefaultModel())
	assert.Equal(t, "openai", a.Name())
	assert.False(t, a.SupportsOAuth())
}

func TestOpenAIChatAdapter_ConvertHistory_AllSpeakers(t *testing.T) {
	a := NewOpenAIChatAdapter("")
	h := llmrt.History{
		{Speaker: llmrt.SpeakerSystem, Blocks: []llmrt.Block{llmrt.NewTextBlock("be terse")}},
		{Speaker: llmrt.SpeakerHuman, Blocks: []llmrt.Block{llmrt.NewTextBlock("hi")}},
		{Speaker: llmrt.SpeakerAI, Blocks: []llmrt.Block{
			llmrt.NewTextBlock("checking"),
			llmrt.NewToolCallBlock("hist_tool_abc", "get_weather", map[string]any{"city": "Paris"}),
		}},
		{Speaker: llmrt.SpeakerTool, Blocks: []llmrt.Block{
			llmrt.NewToolResponseBlock("hist_tool_abc", "get_weather", "sunny", false, ""),
		}},
	}
	messages := a.convertHistory(h)
	assert.Len(t, messages, 4)
}

func TestOpenAIChatAdapter_ConvertHistory_AttachesToolCallsToAssistantMessage(t *testing.T) {
	a := NewOpenAIChatAdapter("")
	h := llmrt.History{
		{Speaker: llmrt.SpeakerAI, Blocks: []llmrt.Block{
			llmrt.NewToolCallBlock("hist_tool_abc", "get_weather", map[string]any{"city": "Paris"}),
		}},
	}
	messages := a.convertHistory(h)
	assistant := messages[0].OfAssistant
	assert.NotNil(t, assistant)
	assert.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_abc", assistant.ToolCalls[0].OfFunction.ID)
}

func TestOpenAIChatAdapter_ConvertCompletion_EmptyChoices(t *testing.T) {
	a := NewOpenAIChatAdapter("")
	completion := &openai.ChatCompletion{}
	c := a.convertCompletion(completion)
	assert.Equal(t, llmrt.SpeakerAI, c.Speaker)
	assert.Empty(t, c.Blocks)
}

func TestOpenAIChatAdapter_BuildParams_DefaultsModel(t *testing.T) {
	a := NewOpenAIChatAdapter("")
	params := a.buildParams(&llmrt.ResolvedCall{})
	assert.Equal(t, "gpt-4o-mini", string(params.Model))
}

func TestOpenAIChatAdapter_BuildParams_AppliesModelParams(t *testing.T) {
	a := NewOpenAIChatAdapter("")
	call := &llmrt.ResolvedCall{
		Model:       "gpt-4o",
		ModelParams: map[string]any{"temperature": 0.2, "max_tokens": 512},
	}
	params := a.buildParams(call)
	assert.Equal(t, "gpt-4o", string(params.Model))
	assert.True(t, params.Temperature.Valid())
	assert.True(t, params.MaxTokens.Valid())
}

package providers

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/taipm/llmrt"
)

func TestNewGeminiAdapter_DefaultsModel(t *testing.T) {
	a := NewGeminiAdapter("")
	assert.Equal(t, "gemini-2.5-flash", a.GetDefaultModel())
	assert.Equal(t, "gemini", a.Name())
	assert.True(t, a.SupportsOAuth())
}

func TestCodeAssistSessionID_EmbedsRuntimeID(t *testing.T) {
	assert.Equal(t, "code-assist-run-123", codeAssistSessionID("run-123"))
}

func TestGeminiAdapter_ConvertHistory_LastTurnSplitOut(t *testing.T) {
	a := NewGeminiAdapter("")
	h := llmrt.History{
		{Speaker: llmrt.SpeakerHuman, Blocks: []llmrt.Block{llmrt.NewTextBlock("hi")}},
		{Speaker: llmrt.SpeakerAI, Blocks: []llmrt.Block{llmrt.NewTextBlock("hello")}},
		{Speaker: llmrt.SpeakerHuman, Blocks: []llmrt.Block{llmrt.NewTextBlock("what's the weather")}},
	}
	history, lastTurn := a.convertHistory(h)
	assert.Len(t, history, 2)
	assert.Len(t, lastTurn, 1)
}

func TestGeminiAdapter_ConvertHistory_SkipsSystemTurn(t *testing.T) {
	a := NewGeminiAdapter("")
	h := llmrt.History{
		{Speaker: llmrt.SpeakerSystem, Blocks: []llmrt.Block{llmrt.NewTextBlock("sys")}},
		{Speaker: llmrt.SpeakerHuman, Blocks: []llmrt.Block{llmrt.NewTextBlock("hi")}},
	}
	history, lastTurn := a.convertHistory(h)
	assert.Empty(t, history)
	assert.Len(t, lastTurn, 1)
}

func TestJSONSchemaToGenaiSchema_MapsProperties(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]interface{}{
			"city": map[string]interface{}{"type": "string", "description": "city name"},
		},
		"required": []string{"city"},
	}
	out := jsonSchemaToGenaiSchema(schema)
	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Contains(t, out.Properties, "city")
	assert.Equal(t, genai.TypeString, out.Properties["city"].Type)
	assert.Equal(t, []string{"city"}, out.Required)
}

func TestJSONSchemaToGenaiSchema_MissingPropertiesReturnsBareObject(t *testing.T) {
	out := jsonSchemaToGenaiSchema(map[string]any{})
	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Empty(t, out.Properties)
}

func TestGenaiTypeFor(t *testing.T) {
	assert.Equal(t, genai.TypeString, genaiTypeFor("string"))
	assert.Equal(t, genai.TypeInteger, genaiTypeFor("integer"))
	assert.Equal(t, genai.TypeArray, genaiTypeFor("array"))
	assert.Equal(t, genai.TypeString, genaiTypeFor("unknown"))
	assert.Equal(t, genai.TypeString, genaiTypeFor(nil))
}

func TestStringOr(t *testing.T) {
	assert.Equal(t, "hi", stringOr("hi"))
	assert.Equal(t, "", stringOr(42))
	assert.Equal(t, "", stringOr(nil))
}

package llmrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentClone_Independence(t *testing.T) {
	c := Content{
		Speaker: SpeakerAI,
		Blocks: []Block{
			NewTextBlock("hello"),
			NewToolCallBlock("hist_tool_1", "search", map[string]any{"q": "go"}),
		},
		Metadata: map[string]any{"synthetic": false},
	}

	clone := c.Clone()
	clone.Blocks[0].Text.Text = "mutated"
	clone.ToolCalls()[0].Parameters["q"] = "mutated"
	clone.Metadata["synthetic"] = true

	assert.Equal(t, "hello", c.Blocks[0].Text.Text)
	assert.Equal(t, "go", c.ToolCalls()[0].Parameters["q"])
	assert.Equal(t, false, c.Metadata["synthetic"])
}

func TestContent_TextBlocksSkipsNonText(t *testing.T) {
	c := Content{
		Speaker: SpeakerAI,
		Blocks: []Block{
			NewTextBlock("a "),
			NewMediaBlock("image/png", "base64data", EncodingBase64),
			NewTextBlock("b"),
		},
	}
	assert.Equal(t, "a b", c.TextBlocks())
}

func TestContent_WithUsage(t *testing.T) {
	c := Content{Speaker: SpeakerAI, Blocks: []Block{NewTextBlock("done")}}
	u := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	withUsage := c.WithUsage(u)

	require.NotNil(t, withUsage.Metadata)
	got, ok := withUsage.Metadata[metadataUsageKey].(Usage)
	require.True(t, ok)
	assert.Equal(t, u, got)
	assert.Nil(t, c.Metadata, "original content must be untouched")
}

func TestContent_IsSynthetic(t *testing.T) {
	plain := Content{Speaker: SpeakerTool}
	assert.False(t, plain.IsSynthetic())

	synthetic := Content{Speaker: SpeakerTool, Metadata: map[string]any{"synthetic": true}}
	assert.True(t, synthetic.IsSynthetic())
}

func TestHistoryClone_Independence(t *testing.T) {
	h := History{
		{Speaker: SpeakerHuman, Blocks: []Block{NewTextBlock("hi")}},
	}
	clone := h.Clone()
	clone[0].Blocks[0].Text.Text = "changed"
	assert.Equal(t, "hi", h[0].Blocks[0].Text.Text)
}

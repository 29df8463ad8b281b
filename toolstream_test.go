package llmrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestToolCallAccumulator_PreservesAssignedID is §8 property 8.
func TestToolCallAccumulator_PreservesAssignedID(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: 0, ID: "call_abc", Name: "search"})
	acc.Add(ToolCallFragment{Index: 0, ArgsChunk: `{"q":`})
	acc.Add(ToolCallFragment{Index: 0, ArgsChunk: `"golang"}`})

	out := acc.Finalize()
	require.Len(t, out, 1)
	assert.Equal(t, "call_abc", out[0].ID)
	assert.Equal(t, "search", out[0].Name)
	assert.Equal(t, "golang", out[0].Args["q"])
}

func TestToolCallAccumulator_LaterFragmentWithoutIDReusesEarlierID(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: 2, ID: "call_first"})
	acc.Add(ToolCallFragment{Index: 2, ID: ""})

	out := acc.Finalize()
	require.Len(t, out, 1)
	assert.Equal(t, "call_first", out[0].ID)
}

func TestToolCallAccumulator_OrdersByIndex(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: 3, ID: "c3"})
	acc.Add(ToolCallFragment{Index: 1, ID: "c1"})
	acc.Add(ToolCallFragment{Index: 2, ID: "c2"})

	out := acc.Finalize()
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].Index, out[1].Index, out[2].Index})
}

func TestParseToolArgs_ValidJSON(t *testing.T) {
	args := parseToolArgs(`{"location":"Paris","days":3}`)
	assert.Equal(t, "Paris", args["location"])
	assert.EqualValues(t, 3, args["days"])
}

func TestParseToolArgs_TruncatedJSONRepaired(t *testing.T) {
	args := parseToolArgs(`{"location":"Paris","nested":{"a":1`)
	assert.Equal(t, "Paris", args["location"])
}

func TestParseToolArgs_UnparsableWrapsAsValue(t *testing.T) {
	args := parseToolArgs(`not json at all`)
	assert.Equal(t, "not json at all", args["value"])
}

func TestParseToolArgs_Empty(t *testing.T) {
	args := parseToolArgs("")
	assert.Equal(t, map[string]any{}, args)
}

func TestValidateToolName_ExactCaseInsensitive(t *testing.T) {
	v := ValidateToolName("Search", []string{"search", "lookup"})
	assert.True(t, v.Valid)
	assert.Equal(t, "search", v.CorrectedName)
}

func TestValidateToolName_UnambiguousPrefix(t *testing.T) {
	v := ValidateToolName("sea", []string{"search", "lookup"})
	assert.True(t, v.Valid)
	assert.Equal(t, "search", v.CorrectedName)
}

func TestValidateToolName_AmbiguousPrefix(t *testing.T) {
	v := ValidateToolName("se", []string{"search", "sender"})
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "ambiguous")
}

func TestValidateToolName_NotFound(t *testing.T) {
	v := ValidateToolName("unknown", []string{"search"})
	assert.False(t, v.Valid)
}

func TestNormalizeToolName(t *testing.T) {
	assert.Equal(t, "search", NormalizeToolName("  Search  "))
}

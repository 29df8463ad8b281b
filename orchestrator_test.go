package llmrt

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettings(t *testing.T) *Settings {
	t.Helper()
	return NewSettings(DefaultDefaults())
}

func sampleContents() History {
	return History{{Speaker: SpeakerHuman, Blocks: []Block{NewTextBlock("hi")}}}
}

func TestOrchestrator_Resolve_RejectsEmptyContents(t *testing.T) {
	o := NewOrchestrator("openai")
	_, err := o.Resolve(context.Background(), GenerateOptions{
		ProviderName: "openai",
		Settings:     newTestSettings(t),
	})
	assert.Error(t, err)
}

func TestOrchestrator_Resolve_RejectsMissingProvider(t *testing.T) {
	o := NewOrchestrator("openai")
	_, err := o.Resolve(context.Background(), GenerateOptions{
		Contents: sampleContents(),
		Settings: newTestSettings(t),
	})
	assert.Error(t, err)
}

func TestOrchestrator_Resolve_RejectsMissingSettings(t *testing.T) {
	o := NewOrchestrator("openai")
	_, err := o.Resolve(context.Background(), GenerateOptions{
		ProviderName: "openai",
		Contents:     sampleContents(),
	})
	assert.Error(t, err)
}

func TestOrchestrator_Resolve_HappyPath(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.SetProviderSetting("openai", "auth-key", "sk-test")
	settings.SetProviderSetting("openai", "model", "gpt-4o")

	call, err := o.Resolve(context.Background(), GenerateOptions{
		ProviderName: "openai",
		Contents:     sampleContents(),
		Settings:     settings,
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", call.Provider)
	assert.Equal(t, "gpt-4o", call.Model)
	assert.Equal(t, "sk-test", call.AuthToken)
}

func TestOrchestrator_GetAuthToken_AuthKeyOverridesKeyfile(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	dir := t.TempDir()
	keyfile := filepath.Join(dir, "key.txt")
	require.NoError(t, os.WriteFile(keyfile, []byte("from-file\n"), 0600))

	settings.SetProviderSetting("openai", "auth-key", "from-key")
	settings.SetProviderSetting("openai", "auth-keyfile", keyfile)

	view := settings.NewView("openai", nil, nil)
	token, err := o.getAuthToken(view)
	require.NoError(t, err)
	assert.Equal(t, "from-key", token)
}

func TestOrchestrator_GetAuthToken_ReadsKeyfileWhenNoAuthKey(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	dir := t.TempDir()
	keyfile := filepath.Join(dir, "key.txt")
	require.NoError(t, os.WriteFile(keyfile, []byte("  from-file-trimmed  \n"), 0600))

	settings.SetProviderSetting("openai", "auth-keyfile", keyfile)

	view := settings.NewView("openai", nil, nil)
	token, err := o.getAuthToken(view)
	require.NoError(t, err)
	assert.Equal(t, "from-file-trimmed", token)
}

func TestOrchestrator_GetAuthToken_EmptyWhenNeitherSet(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	view := settings.NewView("openai", nil, nil)
	token, err := o.getAuthToken(view)
	require.NoError(t, err)
	assert.Equal(t, "", token)
}

func TestOrchestrator_GetBaseURL_ActiveProviderUsesBaseURL(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.Set("base-url", "https://active.example")
	view := settings.NewView("openai", nil, nil)
	assert.Equal(t, "https://active.example", o.getBaseURL(view, "openai"))
}

func TestOrchestrator_GetBaseURL_NonActiveProviderUsesProviderBaseURL(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.Set("provider-base-url", "https://gemini.example")
	view := settings.NewView("gemini", nil, nil)
	assert.Equal(t, "https://gemini.example", o.getBaseURL(view, "gemini"))
}

func TestOrchestrator_GetBaseURL_NonActiveProviderWithoutOverrideIsEmpty(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.Set("base-url", "https://active.example")
	view := settings.NewView("gemini", nil, nil)
	assert.Equal(t, "", o.getBaseURL(view, "gemini"))
}

func TestOrchestrator_GetCustomHeaders_ParsesCommaSeparatedPairs(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.Set("custom-headers", "X-One=1, X-Two = 2")
	view := settings.NewView("openai", nil, nil)
	headers := o.getCustomHeaders(view)
	assert.Equal(t, "1", headers["X-One"])
	assert.Equal(t, "2", headers["X-Two"])
}

func TestOrchestrator_GetCustomHeaders_IgnoresMalformedPairs(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.Set("custom-headers", "novalue,X-One=1")
	view := settings.NewView("openai", nil, nil)
	headers := o.getCustomHeaders(view)
	assert.Len(t, headers, 1)
	assert.Equal(t, "1", headers["X-One"])
}

func TestOrchestrator_GetModelParams_ParsesRecognizedEphemerals(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.Set("temperature", "0.5")
	settings.Set("max-tokens", "2048")
	settings.Set("top-p", "0.9")
	view := settings.NewView("openai", nil, nil)
	params := o.getModelParams(view)
	assert.Equal(t, 0.5, params["temperature"])
	assert.Equal(t, 2048, params["max_tokens"])
	assert.Equal(t, 0.9, params["top_p"])
}

func TestOrchestrator_GetModelParams_IgnoresUnparsableValues(t *testing.T) {
	o := NewOrchestrator("openai")
	settings := newTestSettings(t)
	settings.Set("temperature", "not-a-number")
	view := settings.NewView("openai", nil, nil)
	params := o.getModelParams(view)
	_, ok := params["temperature"]
	assert.False(t, ok)
}

func TestExpandHome_LeavesNonTildePathsAlone(t *testing.T) {
	got, err := expandHome("/tmp/foo")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/foo", got)
}

func TestExpandHome_ExpandsBareTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err := expandHome("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)
}

func TestExpandHome_ExpandsTildeSlash(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err := expandHome("~/configs/key.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "configs/key.txt"), got)
}

package llmrt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name     string
	authed   bool
	fail     error
	response string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) IsAuthenticated(call *ResolvedCall) bool { return f.authed }

func (f *fakeAdapter) Generate(ctx context.Context, call *ResolvedCall) (<-chan Content, <-chan error) {
	contentCh := make(chan Content, 1)
	errCh := make(chan error, 1)
	if f.fail != nil {
		errCh <- f.fail
		close(contentCh)
		close(errCh)
		return contentCh, errCh
	}
	contentCh <- Content{Speaker: SpeakerAI, Blocks: []Block{NewTextBlock(f.response)}}
	close(contentCh)
	close(errCh)
	return contentCh, errCh
}

func resolveFor(providerName string) (*ResolvedCall, error) {
	return &ResolvedCall{Provider: providerName}, nil
}

func TestMultiProvider_Generate_NoProvidersRegistered(t *testing.T) {
	mp := NewMultiProvider(StrategyRoundRobin)
	contentCh, errCh := mp.Generate(context.Background(), resolveFor)

	_, ok := <-contentCh
	assert.False(t, ok)
	err := <-errCh
	assert.Error(t, err)
}

func TestMultiProvider_Generate_SucceedsOnFirstHealthyProvider(t *testing.T) {
	mp := NewMultiProvider(StrategyPriority)
	mp.Register(&fakeAdapter{name: "a", response: "hello"}, 1, 0)

	var got []Content
	contentCh, errCh := mp.Generate(context.Background(), resolveFor)
	for c := range contentCh {
		got = append(got, c)
	}
	require.NoError(t, <-errCh)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].TextBlocks())

	health := mp.Health()
	assert.Equal(t, ProviderStatusHealthy, health["a"].Status)
	assert.Equal(t, int64(1), health["a"].SuccessCount)
}

func TestMultiProvider_Generate_FallsBackAfterFailure(t *testing.T) {
	mp := NewMultiProvider(StrategyRoundRobin)
	mp.Register(&fakeAdapter{name: "good", response: "ok"}, 1, 0)
	mp.Register(&fakeAdapter{name: "bad", fail: errors.New("boom")}, 1, 0)

	var got []Content
	contentCh, errCh := mp.Generate(context.Background(), resolveFor)
	for c := range contentCh {
		got = append(got, c)
	}
	require.NoError(t, <-errCh)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].TextBlocks())

	health := mp.Health()
	assert.Equal(t, ProviderStatusDegraded, health["bad"].Status)
	assert.Equal(t, ProviderStatusHealthy, health["good"].Status)
}

func TestMultiProvider_Generate_AllProvidersFail(t *testing.T) {
	mp := NewMultiProvider(StrategyRoundRobin)
	mp.Register(&fakeAdapter{name: "a", fail: errors.New("boom-a")}, 1, 0)
	mp.Register(&fakeAdapter{name: "b", fail: errors.New("boom-b")}, 1, 0)

	contentCh, errCh := mp.Generate(context.Background(), resolveFor)
	_, ok := <-contentCh
	assert.False(t, ok)
	assert.Error(t, <-errCh)
}

func TestMultiProvider_DisableExcludesFromSelection(t *testing.T) {
	mp := NewMultiProvider(StrategyPriority)
	mp.Register(&fakeAdapter{name: "a", response: "from-a"}, 1, 0)
	mp.Register(&fakeAdapter{name: "b", response: "from-b"}, 1, 1)
	mp.Disable("a")

	var got []Content
	contentCh, errCh := mp.Generate(context.Background(), resolveFor)
	for c := range contentCh {
		got = append(got, c)
	}
	require.NoError(t, <-errCh)
	require.Len(t, got, 1)
	assert.Equal(t, "from-b", got[0].TextBlocks())
}

func TestMultiProvider_EnableRestoresSelection(t *testing.T) {
	mp := NewMultiProvider(StrategyPriority)
	mp.Register(&fakeAdapter{name: "a", response: "from-a"}, 1, 0)
	mp.Disable("a")
	mp.Enable("a")

	health := mp.Health()
	assert.Equal(t, ProviderStatusUnknown, health["a"].Status)
}

func TestMultiProvider_PriorityStrategy_PicksLowestPriority(t *testing.T) {
	mp := NewMultiProvider(StrategyPriority)
	mp.Register(&fakeAdapter{name: "low-priority", response: "low"}, 1, 5)
	mp.Register(&fakeAdapter{name: "high-priority", response: "high"}, 1, 1)

	chosen, err := mp.selectLocked()
	require.NoError(t, err)
	assert.Equal(t, "high-priority", chosen.adapter.Name())
}

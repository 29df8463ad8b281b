package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taipm/llmrt"
)

func mustRecordSession(t *testing.T, chatsDir, sessionID, projectHash string, messages ...string) *Recorder {
	t.Helper()
	r, err := StartRecorder(chatsDir, sessionID, projectHash)
	require.NoError(t, err)
	for _, m := range messages {
		require.NoError(t, r.Append(llmrt.Content{
			Speaker: llmrt.SpeakerHuman,
			Blocks:  []llmrt.Block{llmrt.NewTextBlock(m)},
		}))
	}
	return r
}

func TestListSessions_FiltersByProjectHash(t *testing.T) {
	dir := t.TempDir()

	r1 := mustRecordSession(t, dir, "aaa", "proj-1", "hello")
	require.NoError(t, r1.Close())
	r2 := mustRecordSession(t, dir, "bbb", "proj-2", "hi")
	require.NoError(t, r2.Close())

	entries, err := ListSessions(dir, "proj-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "aaa", entries[0].SessionID)
}

func TestListSessions_EmptyProjectHashReturnsAll(t *testing.T) {
	dir := t.TempDir()
	r1 := mustRecordSession(t, dir, "aaa", "proj-1")
	require.NoError(t, r1.Close())
	r2 := mustRecordSession(t, dir, "bbb", "proj-2")
	require.NoError(t, r2.Close())

	entries, err := ListSessions(dir, "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestListSessionsDetailed_SkipsUnparsableFiles(t *testing.T) {
	dir := t.TempDir()
	r := mustRecordSession(t, dir, "good", "proj-1")
	require.NoError(t, r.Close())

	badPath := filepath.Join(dir, "session-bad.jsonl")
	require.NoError(t, os.WriteFile(badPath, []byte("not json\n"), 0644))

	entries, skipped, err := ListSessionsDetailed(dir, "")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, skipped)
}

func TestListSessions_SortsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	r1 := mustRecordSession(t, dir, "old", "proj-1")
	require.NoError(t, r1.Close())

	olderTime := time.Now().Add(-time.Hour)
	oldPath := filepath.Join(dir, "session-old.jsonl")
	require.NoError(t, os.Chtimes(oldPath, olderTime, olderTime))

	r2 := mustRecordSession(t, dir, "new", "proj-1")
	require.NoError(t, r2.Close())

	entries, err := ListSessions(dir, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].SessionID)
	assert.Equal(t, "old", entries[1].SessionID)
}

func TestHasContentEvents(t *testing.T) {
	dir := t.TempDir()
	withContent := mustRecordSession(t, dir, "with-content", "proj-1", "hello")
	require.NoError(t, withContent.Close())

	withoutContent := mustRecordSession(t, dir, "without-content", "proj-1")
	require.NoError(t, withoutContent.Close())

	assert.True(t, HasContentEvents(filepath.Join(dir, "session-with-content.jsonl")))
	assert.False(t, HasContentEvents(filepath.Join(dir, "session-without-content.jsonl")))
}

func TestReadFirstUserMessage_FindsFirstHumanTurn(t *testing.T) {
	dir := t.TempDir()
	r, err := StartRecorder(dir, "s1", "proj-1")
	require.NoError(t, err)
	require.NoError(t, r.Append(llmrt.Content{Speaker: llmrt.SpeakerSystem, Blocks: []llmrt.Block{llmrt.NewTextBlock("sys")}}))
	require.NoError(t, r.Append(llmrt.Content{Speaker: llmrt.SpeakerHuman, Blocks: []llmrt.Block{llmrt.NewTextBlock("my real question")}}))
	require.NoError(t, r.Close())

	text, found := ReadFirstUserMessage(filepath.Join(dir, "session-s1.jsonl"), 100)
	assert.True(t, found)
	assert.Equal(t, "my real question", text)
}

func TestReadFirstUserMessage_TruncatesToMaxLen(t *testing.T) {
	dir := t.TempDir()
	r, err := StartRecorder(dir, "s1", "proj-1")
	require.NoError(t, err)
	require.NoError(t, r.Append(llmrt.Content{Speaker: llmrt.SpeakerHuman, Blocks: []llmrt.Block{llmrt.NewTextBlock("0123456789")}}))
	require.NoError(t, r.Close())

	text, found := ReadFirstUserMessage(filepath.Join(dir, "session-s1.jsonl"), 5)
	assert.True(t, found)
	assert.Equal(t, "01234", text)
}

func TestReadFirstUserMessage_NoHumanTurnReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	r, err := StartRecorder(dir, "s1", "proj-1")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, found := ReadFirstUserMessage(filepath.Join(dir, "session-s1.jsonl"), 100)
	assert.False(t, found)
}

func TestResolveSessionRef_ExactMatch(t *testing.T) {
	sessions := []SessionEntry{{SessionID: "abc123"}, {SessionID: "def456"}}
	entry, err := ResolveSessionRef("def456", sessions)
	require.NoError(t, err)
	assert.Equal(t, "def456", entry.SessionID)
}

func TestResolveSessionRef_NumericIndex(t *testing.T) {
	sessions := []SessionEntry{{SessionID: "abc123"}, {SessionID: "def456"}}
	entry, err := ResolveSessionRef("2", sessions)
	require.NoError(t, err)
	assert.Equal(t, "def456", entry.SessionID)
}

func TestResolveSessionRef_NumericIndexOutOfRange(t *testing.T) {
	sessions := []SessionEntry{{SessionID: "abc123"}}
	_, err := ResolveSessionRef("9", sessions)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResolveSessionRef_UniquePrefix(t *testing.T) {
	sessions := []SessionEntry{{SessionID: "abc123"}, {SessionID: "def456"}}
	entry, err := ResolveSessionRef("abc", sessions)
	require.NoError(t, err)
	assert.Equal(t, "abc123", entry.SessionID)
}

func TestResolveSessionRef_AmbiguousPrefix(t *testing.T) {
	sessions := []SessionEntry{{SessionID: "abc123"}, {SessionID: "abc999"}}
	_, err := ResolveSessionRef("abc", sessions)
	assert.ErrorIs(t, err, ErrSessionAmbiguous)
}

func TestResolveSessionRef_NoMatch(t *testing.T) {
	sessions := []SessionEntry{{SessionID: "abc123"}}
	_, err := ResolveSessionRef("zzz", sessions)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

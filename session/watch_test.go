package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchEventKind_String(t *testing.T) {
	assert.Equal(t, "created", WatchCreated.String())
	assert.Equal(t, "modified", WatchModified.String())
	assert.Equal(t, "removed", WatchRemoved.String())
	assert.Equal(t, "unknown", WatchEventKind(99).String())
}

func TestIsSessionDataFile(t *testing.T) {
	assert.True(t, isSessionDataFile("/chats/session-abc.jsonl"))
	assert.False(t, isSessionDataFile("/chats/session-abc.jsonl.lock"))
	assert.False(t, isSessionDataFile("/chats/other.jsonl"))
}

func TestClassify_MapsCreateWriteRemove(t *testing.T) {
	kind, ok := classify(fsnotify.Event{Op: fsnotify.Create})
	require.True(t, ok)
	assert.Equal(t, WatchCreated, kind)

	kind, ok = classify(fsnotify.Event{Op: fsnotify.Write})
	require.True(t, ok)
	assert.Equal(t, WatchModified, kind)

	kind, ok = classify(fsnotify.Event{Op: fsnotify.Remove})
	require.True(t, ok)
	assert.Equal(t, WatchRemoved, kind)

	kind, ok = classify(fsnotify.Event{Op: fsnotify.Rename})
	require.True(t, ok)
	assert.Equal(t, WatchRemoved, kind)

	_, ok = classify(fsnotify.Event{Op: fsnotify.Chmod})
	assert.False(t, ok)
}

func TestWatch_EmitsEventForNewSessionFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Watch(ctx, dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "session-live.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	select {
	case ev := <-events:
		assert.Equal(t, path, ev.Path)
		assert.Contains(t, []WatchEventKind{WatchCreated, WatchModified}, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestWatch_IgnoresNonSessionFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for non-session file: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_ClosesChannelOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := Watch(ctx, dir)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

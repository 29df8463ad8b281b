package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchEventKind classifies a session-directory change.
type WatchEventKind int

const (
	WatchCreated WatchEventKind = iota
	WatchModified
	WatchRemoved
)

func (k WatchEventKind) String() string {
	switch k {
	case WatchCreated:
		return "created"
	case WatchModified:
		return "modified"
	case WatchRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// WatchEvent is one observed change to a session-*.jsonl file.
type WatchEvent struct {
	Kind WatchEventKind
	Path string
}

// Watch wraps fsnotify to push Created/Modified/Removed events for
// session-*.jsonl files in chatsDir, letting a caller keep a live session
// list without polling ListSessions. It never writes to chatsDir itself —
// it is a pure read-side observer and never competes with a Recorder for
// the write lock. The returned channel is closed when ctx is cancelled or
// the underlying watcher errors fatally.
func Watch(ctx context.Context, chatsDir string) (<-chan WatchEvent, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("session: create watcher: %w", err)
	}
	if err := watcher.Add(chatsDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("session: watch %s: %w", chatsDir, err)
	}

	out := make(chan WatchEvent)

	go func() {
		defer watcher.Close()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isSessionDataFile(event.Name) {
					continue
				}
				kind, ok := classify(event)
				if !ok {
					continue
				}
				select {
				case out <- WatchEvent{Kind: kind, Path: event.Name}:
				case <-ctx.Done():
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}

func isSessionDataFile(path string) bool {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "session-") {
		return false
	}
	return strings.HasSuffix(base, ".jsonl")
}

func classify(event fsnotify.Event) (WatchEventKind, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return WatchCreated, true
	case event.Has(fsnotify.Write):
		return WatchModified, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return WatchRemoved, true
	default:
		return 0, false
	}
}

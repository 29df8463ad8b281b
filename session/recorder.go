package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taipm/llmrt"
)

// Recorder is a single-writer append-only JSONL session log, guarded by a
// sidecar PID lock (§4.H, §5 "single-writer per session"). Appends are
// serialized so lines never interleave and seq is strictly increasing.
type Recorder struct {
	file      *os.File
	path      string
	mu        sync.Mutex
	seqCounter uint64
	closed    bool
}

// StartRecorder creates session-<id>.jsonl and its sidecar lock, writes the
// session_start line, and returns a Recorder ready for Append.
func StartRecorder(chatsDir, sessionID, projectHash string) (*Recorder, error) {
	if err := os.MkdirAll(chatsDir, 0755); err != nil {
		return nil, fmt.Errorf("session: create chats dir: %w", err)
	}

	path := filepath.Join(chatsDir, "session-"+sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("session: create session file: %w", err)
	}

	if err := writeLock(path, os.Getpid()); err != nil {
		f.Close()
		return nil, fmt.Errorf("session: write lock: %w", err)
	}

	r := &Recorder{file: f, path: path}

	start := StartRecord{
		Type:        RecordTypeStart,
		SessionID:   sessionID,
		ProjectHash: projectHash,
		CreatedAt:   time.Now(),
	}
	if err := r.writeLine(start); err != nil {
		f.Close()
		removeLock(path)
		return nil, err
	}

	return r, nil
}

// Append writes one content event with a monotonically increasing seq.
func (r *Recorder) Append(c llmrt.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("session: recorder closed")
	}

	rec := ContentRecord{
		Type:    RecordTypeContent,
		Seq:     atomic.AddUint64(&r.seqCounter, 1),
		Ts:      time.Now(),
		Content: c,
	}
	return r.writeLineLocked(rec)
}

func (r *Recorder) writeLine(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLineLocked(v)
}

func (r *Recorder) writeLineLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}
	data = append(data, '\n')
	_, err = r.file.Write(data)
	return err
}

// Close flushes and closes the session file, then removes its lock.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	closeErr := r.file.Close()
	lockErr := removeLock(r.path)
	if closeErr != nil {
		return closeErr
	}
	return lockErr
}

// Path returns the underlying session file path.
func (r *Recorder) Path() string { return r.path }

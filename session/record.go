// Package session implements append-only JSONL recording, discovery, and
// cleanup of session files (§4.H).
package session

import (
	"time"

	"github.com/taipm/llmrt"
)

const (
	RecordTypeStart   = "session_start"
	RecordTypeContent = "content"
)

// StartRecord is the mandatory first line of every session file.
type StartRecord struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"sessionId"`
	ProjectHash string    `json:"projectHash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ContentRecord wraps one neutral Content turn with its sequence number.
type ContentRecord struct {
	Type    string        `json:"type"`
	Seq     uint64        `json:"seq"`
	Ts      time.Time     `json:"ts"`
	Content llmrt.Content `json:"content"`
}

// RawRecord is used to peek at a line's discriminant before fully decoding
// it, so an unknown type never aborts iteration (§6 Session JSONL contract).
type RawRecord struct {
	Type string `json:"type"`
}

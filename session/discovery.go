package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const headerPeekBytes = 4096

// SessionEntry is one discovered session file paired with its parsed header
// and file stat.
type SessionEntry struct {
	SessionID string
	Path      string
	Start     StartRecord
	ModTime   int64 // unix nanoseconds, for newest-first sorting
}

// ListSessions enumerates session-*.jsonl files under chatsDir whose
// session_start header matches projectHash, newest-first by mtime (ties
// broken by descending sessionId).
func ListSessions(chatsDir, projectHash string) ([]SessionEntry, error) {
	entries, _, err := ListSessionsDetailed(chatsDir, projectHash)
	return entries, err
}

// ListSessionsDetailed additionally reports how many candidate files failed
// to parse and were skipped.
func ListSessionsDetailed(chatsDir, projectHash string) ([]SessionEntry, int, error) {
	matches, err := filepath.Glob(filepath.Join(chatsDir, "session-*.jsonl"))
	if err != nil {
		return nil, 0, err
	}

	var out []SessionEntry
	skipped := 0

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			skipped++
			continue
		}

		start, ok := readHeader(path)
		if !ok {
			skipped++
			continue
		}
		if projectHash != "" && start.ProjectHash != projectHash {
			continue
		}

		sessionID := start.SessionID
		if sessionID == "" {
			sessionID = sessionIDFromFilename(path)
		}

		out = append(out, SessionEntry{
			SessionID: sessionID,
			Path:      path,
			Start:     start,
			ModTime:   info.ModTime().UnixNano(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ModTime != out[j].ModTime {
			return out[i].ModTime > out[j].ModTime
		}
		return out[i].SessionID > out[j].SessionID
	})

	return out, skipped, nil
}

func sessionIDFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, "session-")
	return strings.TrimSuffix(base, ".jsonl")
}

// readHeader decodes the first line of a session file via a bounded 4 KiB
// partial read, falling back to a full line-by-line stream read if the
// header line exceeds that bound.
func readHeader(path string) (StartRecord, bool) {
	f, err := os.Open(path)
	if err != nil {
		return StartRecord{}, false
	}
	defer f.Close()

	buf := make([]byte, headerPeekBytes)
	n, _ := io.ReadFull(f, buf)
	buf = buf[:n]

	if nl := bytes.IndexByte(buf, '\n'); nl >= 0 {
		return decodeHeaderLine(buf[:nl])
	}

	f.Seek(0, io.SeekStart)
	reader := bufio.NewReader(f)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return StartRecord{}, false
	}
	return decodeHeaderLine(bytes.TrimRight(line, "\n"))
}

func decodeHeaderLine(line []byte) (StartRecord, bool) {
	line = stripBOM(line)
	var rec StartRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return StartRecord{}, false
	}
	if rec.Type != RecordTypeStart {
		return StartRecord{}, false
	}
	return rec, true
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

// HasContentEvents reports whether at least one non-header line in the
// session file is a valid type="content" record.
func HasContentEvents(path string) bool {
	found := false
	_ = forEachLine(path, func(line []byte) bool {
		var raw RawRecord
		if err := json.Unmarshal(line, &raw); err != nil {
			return true
		}
		if raw.Type == RecordTypeContent {
			found = true
			return false
		}
		return true
	})
	return found
}

// ReadFirstUserMessage scans a session file for the first content record
// whose speaker is "human", concatenates its text blocks, and truncates to
// maxLen runes. It never errors: any I/O or parse failure yields "", false.
func ReadFirstUserMessage(path string, maxLen int) (string, bool) {
	var result string
	found := false

	_ = forEachLine(path, func(line []byte) bool {
		var rec ContentRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return true
		}
		if rec.Type != RecordTypeContent || rec.Content.Speaker != "human" {
			return true
		}
		text := rec.Content.TextBlocks()
		if text == "" {
			return true
		}
		result = truncateRunes(text, maxLen)
		found = true
		return false
	})

	return result, found
}

func truncateRunes(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// forEachLine streams a file line by line via bufio.Reader (not Scanner, to
// avoid its line-length cap), skipping blank lines, calling fn per line
// until fn returns false or the file ends.
func forEachLine(path string, fn func(line []byte) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	first := true
	for {
		line, err := reader.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if first {
			trimmed = stripBOM(trimmed)
			first = false
		}
		if len(trimmed) > 0 {
			if !fn(trimmed) {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// ResolveSessionRef resolves a user-supplied reference against a list of
// sessions: exact sessionId match, then all-digits 1-based index, then
// unique prefix match.
func ResolveSessionRef(ref string, sessions []SessionEntry) (*SessionEntry, error) {
	for i := range sessions {
		if sessions[i].SessionID == ref {
			return &sessions[i], nil
		}
	}

	if isAllDigits(ref) {
		idx, err := strconv.Atoi(ref)
		if err == nil && idx >= 1 && idx <= len(sessions) {
			return &sessions[idx-1], nil
		}
		return nil, ErrSessionNotFound
	}

	var matches []int
	for i := range sessions {
		if strings.HasPrefix(sessions[i].SessionID, ref) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return nil, ErrSessionNotFound
	case 1:
		return &sessions[matches[0]], nil
	default:
		return nil, ErrSessionAmbiguous
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

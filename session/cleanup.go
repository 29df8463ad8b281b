package session

import (
	"os"
	"path/filepath"
	"strings"
)

// DeleteVerdict is the outcome of evaluating one session entry for
// cleanup (§4.H).
type DeleteVerdict int

const (
	// VerdictDelete: no lock file exists, safe to remove the data file.
	VerdictDelete DeleteVerdict = iota
	// VerdictSkip: a lock exists and its PID is alive; leave everything.
	VerdictSkip
	// VerdictStaleLockOnly: the lock's PID is dead or unreadable; remove
	// only the lock, leaving the data file for the retention policy.
	VerdictStaleLockOnly
)

// ShouldDeleteSession evaluates a discovered session against its sidecar
// lock to decide whether its data file may be reclaimed.
func ShouldDeleteSession(entry SessionEntry) DeleteVerdict {
	pid, ok := readLockPID(entry.Path)
	if !ok {
		if _, err := os.Stat(lockPath(entry.Path)); os.IsNotExist(err) {
			return VerdictDelete
		}
		return VerdictStaleLockOnly
	}
	if isAlive(pid) {
		return VerdictSkip
	}
	return VerdictStaleLockOnly
}

// CleanupStaleLocks removes orphaned lock files (whose data file no longer
// exists) and stale locks (whose PID is dead), preserving locks held by a
// live process.
func CleanupStaleLocks(chatsDir string) (removed int, err error) {
	matches, err := filepath.Glob(filepath.Join(chatsDir, "session-*.jsonl.lock"))
	if err != nil {
		return 0, err
	}

	for _, lockFile := range matches {
		dataFile := strings.TrimSuffix(lockFile, ".lock")

		if _, statErr := os.Stat(dataFile); os.IsNotExist(statErr) {
			if rmErr := os.Remove(lockFile); rmErr == nil {
				removed++
			}
			continue
		}

		pid, ok := readPIDFromLockFile(lockFile)
		if !ok || !isAlive(pid) {
			if rmErr := os.Remove(lockFile); rmErr == nil {
				removed++
			}
		}
	}

	return removed, nil
}

func readPIDFromLockFile(lockFile string) (int, bool) {
	dataFile := strings.TrimSuffix(lockFile, ".lock")
	return readLockPID(dataFile)
}

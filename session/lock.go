package session

import (
	"encoding/json"
	"os"
	"syscall"
)

// lockPayload is the sidecar lock file's on-disk shape (§6 Session lock
// file contract): unreadable or non-integer PID is treated as dead.
type lockPayload struct {
	PID int `json:"pid"`
}

func lockPath(sessionFile string) string {
	return sessionFile + ".lock"
}

func writeLock(sessionFile string, pid int) error {
	data, err := json.Marshal(lockPayload{PID: pid})
	if err != nil {
		return err
	}
	return os.WriteFile(lockPath(sessionFile), data, 0600)
}

func removeLock(sessionFile string) error {
	err := os.Remove(lockPath(sessionFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// readLockPID returns the PID recorded in a sidecar lock file. ok is false
// when the lock is missing, unreadable, or its PID field is not a valid
// positive integer.
func readLockPID(sessionFile string) (pid int, ok bool) {
	data, err := os.ReadFile(lockPath(sessionFile))
	if err != nil {
		return 0, false
	}
	var p lockPayload
	if err := json.Unmarshal(data, &p); err != nil || p.PID <= 0 {
		return 0, false
	}
	return p.PID, true
}

// isAlive sends signal 0 to pid; any error means the process is not alive
// (§4.H liveness check, standard syscall.Signal(0) idiom).
func isAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

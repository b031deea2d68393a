package cmd

import (
	"fmt"
	"strings"
)

// isDBLockError returns true if the error chain contains a bbolt lock
// timeout. bbolt reports "timeout" when it cannot acquire the file lock
// within the configured deadline.
func isDBLockError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "timeout")
}

// lockGuidance explains a held state-database lock and how to clear it.
// The usual holder is a `kmatch watch` process, which keeps the store
// open while it monitors the exports directory.
func lockGuidance(path string) string {
	return fmt.Sprintf("state database %s is locked by another kmatch process\n"+
		"  → a running `kmatch watch` holds the lock; stop it and retry\n"+
		"  → or find the process:  ps aux | grep kmatch", path)
}

// checkExit is returned by check to signal a specific exit code.
// Mirrors grep: 0=all recognised, 1=some not recognised, 2=error.
type checkExit struct{ code int }

func (e checkExit) Error() string {
	switch e.code {
	case 0:
		return ""
	case 1:
		return "not recognised"
	default:
		return fmt.Sprintf("check error (exit %d)", e.code)
	}
}

// CheckExitCode extracts the exit code from a checkExit error.
// Returns -1 if the error is not a checkExit.
func CheckExitCode(err error) int {
	if ce, ok := err.(checkExit); ok {
		return ce.code
	}
	return -1
}

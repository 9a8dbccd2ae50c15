package app

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// acquireLock takes the single-instance lock: a PID file under the data
// dir. A stale file left by a dead process is reclaimed. The returned
// release removes the file.
func acquireLock(path string) (func(), error) {
	if pid, ok := lockHolder(path); ok {
		return nil, fmt.Errorf("another winpacman instance is running (pid %d)", pid)
	}

	// Holder gone or no file; (re)take it.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	return func() { os.Remove(path) }, nil
}

// lockHolder reports the live process holding the lock, if any.
func lockHolder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Unreadable lock counts as stale.
		return 0, false
	}
	if pid == os.Getpid() {
		return 0, false
	}

	if !processAlive(pid) {
		os.Remove(path)
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if runtime.GOOS == "windows" {
		// FindProcess only succeeds for live processes on Windows.
		return true
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

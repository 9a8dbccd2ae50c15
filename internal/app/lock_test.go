package app

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winpacman.lock")

	release, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquireLock() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if pid, _ := strconv.Atoi(string(data)); pid != os.Getpid() {
		t.Errorf("lock file pid = %s, want %d", data, os.Getpid())
	}

	release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file not removed on release")
	}
}

func TestStaleLockIsReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winpacman.lock")

	// A pid that cannot be a live process.
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}

	release, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquireLock() should reclaim a stale lock, got %v", err)
	}
	release()
}

func TestGarbageLockIsReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winpacman.lock")
	if err := os.WriteFile(path, []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	release, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquireLock() should replace an unreadable lock, got %v", err)
	}
	release()
}

func TestLiveLockBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winpacman.lock")

	// PID 1 is always alive on unix; on other platforms this still
	// exercises the holder path via FindProcess.
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := acquireLock(path); err == nil {
		t.Error("acquireLock() should refuse while another instance holds the lock")
	}
}

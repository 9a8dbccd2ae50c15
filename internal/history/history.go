// Package history persists the install/uninstall operation log as a bounded
// JSON ring buffer.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// maxEntries bounds history.json; the oldest entries fall off first.
const maxEntries = 100

// Entry is one completed operation.
type Entry struct {
	Op        core.OpType  `json:"op"`
	PackageID string       `json:"package_id"`
	Manager   core.Manager `json:"manager"`
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

// Log appends operation entries to a single JSON array on disk. Writes are
// best-effort: failures are logged and swallowed, because losing a history
// line must never fail the operation it records.
type Log struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

func New(path string, log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{path: path, log: log}
}

// Append records one entry, truncating the file to the newest 100.
func (l *Log) Append(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking new entries.
		l.log.Warn("history file unreadable, starting fresh",
			zap.String("path", l.path), zap.Error(err))
		entries = nil
	}

	entries = append(entries, entry)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := l.write(entries); err != nil {
		l.log.Warn("history write failed", zap.String("path", l.path), zap.Error(err))
	}
}

// List returns all stored entries, oldest first. A missing file is an empty
// history, not an error.
func (l *Log) List() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Log) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (l *Log) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	// Write-then-rename keeps a crash from leaving a half-written array.
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

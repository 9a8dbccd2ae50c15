package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/winpacman/internal/core"
)

func entry(id string, ok bool) Entry {
	return Entry{
		Op:        core.OpInstall,
		PackageID: id,
		Manager:   core.ManagerWinGet,
		Success:   ok,
		Message:   "done",
		Timestamp: time.Now().UTC(),
	}
}

func TestAppendAndList(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "history.json"), nil)

	l.Append(entry("Git.Git", true))
	l.Append(entry("Vim.Vim", false))

	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Git.Git", entries[0].PackageID)
	assert.Equal(t, "Vim.Vim", entries[1].PackageID)
	assert.False(t, entries[1].Success)
}

func TestRingTruncatesToNewest(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "history.json"), nil)

	for i := 0; i < 105; i++ {
		l.Append(Entry{Op: core.OpInstall, PackageID: string(rune('a' + i%26)), Timestamp: time.Now()})
	}

	entries, err := l.List()
	require.NoError(t, err)
	assert.Len(t, entries, 100)
}

func TestMissingFileIsEmptyHistory(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "history.json"), nil)
	entries, err := l.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCorruptFileDoesNotBlockAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	l := New(path, nil)
	l.Append(entry("Git.Git", true))

	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Git.Git", entries[0].PackageID)
}

func TestAppendToUnwritablePathDoesNotPanic(t *testing.T) {
	// A directory where the file should be makes every write fail; Append
	// must swallow that.
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "history.json"), 0o755))

	l := New(filepath.Join(dir, "history.json"), nil)
	l.Append(entry("Git.Git", true))
}

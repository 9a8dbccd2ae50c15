package config

import (
	"os"
	"path/filepath"
)

// Dirs is the application's on-disk layout: config/ for settings, data/ for
// the cache database and history, cache/ for transient downloads.
type Dirs struct {
	Config string
	Data   string
	Cache  string
}

// DefaultDirs resolves the layout under %LOCALAPPDATA%\winpacman on Windows
// and under XDG_DATA_HOME (or ~/.local/share) elsewhere.
func DefaultDirs() (Dirs, error) {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		base = os.Getenv("XDG_DATA_HOME")
	}
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Dirs{}, err
		}
		base = filepath.Join(home, ".local", "share")
	}

	root := filepath.Join(base, "winpacman")
	return Dirs{
		Config: filepath.Join(root, "config"),
		Data:   filepath.Join(root, "data"),
		Cache:  filepath.Join(root, "cache"),
	}, nil
}

// Ensure creates the three directories.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Config, d.Data, d.Cache} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ConfigFile is config/config.json.
func (d Dirs) ConfigFile() string { return filepath.Join(d.Config, "config.json") }

// CacheDB is data/metadata_cache.db.
func (d Dirs) CacheDB() string { return filepath.Join(d.Data, "metadata_cache.db") }

// HistoryFile is data/history.json.
func (d Dirs) HistoryFile() string { return filepath.Join(d.Data, "history.json") }

// LockFile guards against two processes mutating the cache.
func (d Dirs) LockFile() string { return filepath.Join(d.Data, "winpacman.lock") }

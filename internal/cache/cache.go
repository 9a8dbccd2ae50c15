// Package cache is the embedded metadata store: one SQLite database holding
// every provider's catalog slice, the installed inventory, per-provider sync
// state and an FTS5 index over the searchable columns.
package cache

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// batchSize is the number of rows written per transaction during a refresh.
const batchSize = 1000

// Cache wraps the SQLite database. Safe for concurrent use; SQLite
// serializes the single writer and WAL keeps readers unblocked.
type Cache struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// Open opens (or creates) the cache at dbPath and applies any pending
// schema migrations. Use ":memory:" for tests.
func Open(dbPath string, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, core.WrapError(core.KindCacheCorrupt, err, "failed to open cache database")
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, core.WrapError(core.KindCacheCorrupt, err, "failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, core.WrapError(core.KindCacheCorrupt, err, "failed to enable foreign keys")
	}

	c := &Cache{db: db, path: dbPath, log: log}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DB exposes the underlying connection for advanced queries.
func (c *Cache) DB() *sql.DB {
	return c.db
}

// migrate applies pending migrations, stamping user_version after each.
func (c *Cache) migrate() error {
	var version int
	if err := c.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to read schema version")
	}
	if version > len(migrations) {
		return core.NewError(core.KindCacheCorrupt,
			"cache schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := c.db.Begin()
		if err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to begin migration %d", i+1)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return core.WrapError(core.KindCacheCorrupt, err, "migration %d failed", i+1)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return core.WrapError(core.KindCacheCorrupt, err, "failed to stamp schema version %d", i+1)
		}
		if err := tx.Commit(); err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to commit migration %d", i+1)
		}
		c.log.Info("applied cache migration", zap.Int("version", i+1))
	}
	return nil
}

// Rebuild drops and recreates every table. The recovery path offered to the
// user when the database is corrupt: all slices must be re-synced after.
func (c *Cache) Rebuild() error {
	drops := []string{
		"DROP TRIGGER IF EXISTS packages_fts_insert",
		"DROP TRIGGER IF EXISTS packages_fts_delete",
		"DROP TRIGGER IF EXISTS packages_fts_update",
		"DROP TABLE IF EXISTS packages_fts",
		"DROP TABLE IF EXISTS packages",
		"DROP TABLE IF EXISTS sync_metadata",
		"DROP TABLE IF EXISTS package_versions",
		"PRAGMA user_version = 0",
	}
	for _, stmt := range drops {
		if _, err := c.db.Exec(stmt); err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "rebuild failed")
		}
	}
	return c.migrate()
}

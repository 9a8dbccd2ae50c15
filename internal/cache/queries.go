package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

const recordColumns = `package_id, manager, name,
	COALESCE(version, ''), COALESCE(description, ''), COALESCE(publisher, ''),
	COALESCE(homepage, ''), COALESCE(license, ''), COALESCE(tags_json, ''),
	COALESCE(search_tokens, ''), COALESCE(last_seen_at, ''),
	is_installed, COALESCE(installed_version, ''), COALESCE(install_date, ''),
	COALESCE(install_source, ''), COALESCE(install_location, '')`

// recordColumnsQualified disambiguates the shared column names when packages
// is joined against its FTS table.
const recordColumnsQualified = `p.package_id, p.manager, p.name,
	COALESCE(p.version, ''), COALESCE(p.description, ''), COALESCE(p.publisher, ''),
	COALESCE(p.homepage, ''), COALESCE(p.license, ''), COALESCE(p.tags_json, ''),
	COALESCE(p.search_tokens, ''), COALESCE(p.last_seen_at, ''),
	p.is_installed, COALESCE(p.installed_version, ''), COALESCE(p.install_date, ''),
	COALESCE(p.install_source, ''), COALESCE(p.install_location, '')`

// Refresh replaces the provider's catalog slice with the records produced by
// stream. Rows are written in batches of 1000; the first batch's transaction
// also deletes the old slice, so a stream that fails before producing
// anything leaves the prior slice untouched. Installed-state fields on
// surviving package ids are carried over so a catalog refresh never clears
// the installed view.
//
// The final sync_metadata row is written by the caller through
// WriteSyncMetadata; Refresh only moves rows.
func (c *Cache) Refresh(ctx context.Context, provider core.Manager, stream func(emit func(core.PackageRecord) error) error) (int, error) {
	installed, err := c.installedState(ctx, provider)
	if err != nil {
		return 0, err
	}

	var (
		batch   []core.PackageRecord
		total   int
		deleted bool
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.writeBatch(ctx, provider, batch, !deleted, installed); err != nil {
			return err
		}
		deleted = true
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	streamErr := stream(func(rec core.PackageRecord) error {
		rec.Manager = provider
		rec.Normalize()
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if streamErr != nil {
		return total, streamErr
	}
	if err := flush(); err != nil {
		return total, err
	}

	// An empty catalog still replaces the slice.
	if !deleted {
		if err := c.writeBatch(ctx, provider, nil, true, installed); err != nil {
			return total, err
		}
	}

	c.log.Debug("cache slice refreshed",
		zap.String("provider", string(provider)), zap.Int("packages", total))
	return total, nil
}

// installedState snapshots the installed-state fields for a provider's
// current slice, keyed by package id.
func (c *Cache) installedState(ctx context.Context, provider core.Manager) (map[string]core.PackageRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT package_id, COALESCE(installed_version, ''), COALESCE(install_date, ''),
		       COALESCE(install_source, ''), COALESCE(install_location, '')
		FROM packages WHERE manager = ? AND is_installed = 1`, string(provider))
	if err != nil {
		return nil, core.WrapError(core.KindCacheCorrupt, err, "failed to read installed state")
	}
	defer rows.Close()

	state := make(map[string]core.PackageRecord)
	for rows.Next() {
		var id, source string
		var rec core.PackageRecord
		if err := rows.Scan(&id, &rec.InstalledVersion, &rec.InstallDate, &source, &rec.InstallLocation); err != nil {
			return nil, core.WrapError(core.KindCacheCorrupt, err, "failed to scan installed state")
		}
		rec.IsInstalled = true
		rec.InstallSource = core.Manager(source)
		state[id] = rec
	}
	return state, rows.Err()
}

func (c *Cache) writeBatch(ctx context.Context, provider core.Manager, batch []core.PackageRecord, deleteSlice bool, installed map[string]core.PackageRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to begin refresh transaction")
	}
	defer tx.Rollback()

	if deleteSlice {
		if _, err := tx.Exec("DELETE FROM packages WHERE manager = ?", string(provider)); err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to delete %s slice", provider)
		}
		if _, err := tx.Exec("DELETE FROM package_versions WHERE manager = ?", string(provider)); err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to delete %s versions", provider)
		}
	}

	insert, err := tx.Prepare(`
		INSERT INTO packages (package_id, manager, name, version, description,
			publisher, homepage, license, tags_json, search_tokens, last_seen_at,
			is_installed, installed_version, install_date, install_source, install_location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(package_id, manager) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			description = excluded.description,
			publisher = excluded.publisher,
			homepage = excluded.homepage,
			license = excluded.license,
			tags_json = excluded.tags_json,
			search_tokens = excluded.search_tokens,
			last_seen_at = excluded.last_seen_at`)
	if err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to prepare insert")
	}
	defer insert.Close()

	insertVersion, err := tx.Prepare(`
		INSERT OR IGNORE INTO package_versions (package_id, manager, version) VALUES (?, ?, ?)`)
	if err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to prepare version insert")
	}
	defer insertVersion.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range batch {
		if prior, ok := installed[rec.PackageID]; ok {
			rec.IsInstalled = true
			rec.InstalledVersion = prior.InstalledVersion
			rec.InstallDate = prior.InstallDate
			rec.InstallSource = prior.InstallSource
			rec.InstallLocation = prior.InstallLocation
		}

		lastSeen := now
		if !rec.LastSeenAt.IsZero() {
			lastSeen = rec.LastSeenAt.UTC().Format(time.RFC3339)
		}
		if _, err := insert.Exec(
			rec.PackageID, string(rec.Manager), rec.Name, rec.Version, rec.Description,
			rec.Publisher, rec.Homepage, rec.License, tagsJSON(rec.Tags), rec.SearchTokens,
			lastSeen, boolToInt(rec.IsInstalled), rec.InstalledVersion, rec.InstallDate,
			string(rec.InstallSource), rec.InstallLocation,
		); err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to insert %s", rec.PackageID)
		}

		for _, v := range rec.Versions {
			if _, err := insertVersion.Exec(rec.PackageID, string(rec.Manager), v); err != nil {
				return core.WrapError(core.KindCacheCorrupt, err, "failed to insert version for %s", rec.PackageID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to commit refresh batch")
	}
	return nil
}

// Search runs an FTS5 match with BM25 ranking. The raw query is sanitized
// first; a query that sanitizes to nothing returns an empty slice rather
// than an FTS syntax error.
func (c *Cache) Search(ctx context.Context, query string, managers []core.Manager, limit int) ([]core.PackageRecord, error) {
	match := sanitizeFTSQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	q := fmt.Sprintf(`
		SELECT %s FROM packages p
		JOIN packages_fts f ON f.rowid = p.id
		WHERE packages_fts MATCH ?`, recordColumnsQualified)
	args := []any{match}

	if len(managers) > 0 {
		q += fmt.Sprintf(" AND p.manager IN (%s)", placeholders(len(managers)))
		for _, m := range managers {
			args = append(args, string(m))
		}
	}
	q += " ORDER BY bm25(packages_fts) LIMIT ?"
	args = append(args, limit)

	return c.queryRecords(ctx, q, args...)
}

// GetInstalled lists installed records with optional manager and
// install-source filters.
func (c *Cache) GetInstalled(ctx context.Context, managers []core.Manager, source core.Manager) ([]core.PackageRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM packages WHERE is_installed = 1", recordColumns)
	var args []any

	if len(managers) > 0 {
		q += fmt.Sprintf(" AND manager IN (%s)", placeholders(len(managers)))
		for _, m := range managers {
			args = append(args, string(m))
		}
	}
	if source != "" {
		q += " AND install_source = ?"
		args = append(args, string(source))
	}
	q += " ORDER BY name COLLATE NOCASE"

	return c.queryRecords(ctx, q, args...)
}

// ListAvailable lists catalog records, optionally for one manager.
func (c *Cache) ListAvailable(ctx context.Context, manager core.Manager) ([]core.PackageRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM packages", recordColumns)
	var args []any
	if manager != "" {
		q += " WHERE manager = ?"
		args = append(args, string(manager))
	}
	q += " ORDER BY name COLLATE NOCASE"
	return c.queryRecords(ctx, q, args...)
}

// Get returns a single record with its known versions, or nil when absent.
func (c *Cache) Get(ctx context.Context, packageID string, manager core.Manager) (*core.PackageRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM packages WHERE package_id = ? AND manager = ?", recordColumns)
	records, err := c.queryRecords(ctx, q, packageID, string(manager))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	versions, err := c.Versions(ctx, packageID, manager)
	if err != nil {
		return nil, err
	}
	rec.Versions = versions
	return &rec, nil
}

// Versions returns all known versions of a package, newest first.
func (c *Cache) Versions(ctx context.Context, packageID string, manager core.Manager) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT version FROM package_versions WHERE package_id = ? AND manager = ?",
		packageID, string(manager))
	if err != nil {
		return nil, core.WrapError(core.KindCacheCorrupt, err, "failed to query versions")
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, core.WrapError(core.KindCacheCorrupt, err, "failed to scan version")
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	core.SortVersionsDesc(versions)
	return versions, nil
}

// FindManager attributes a package id to a manager: exact case-sensitive id
// first, then case-insensitive id, then display name. Returns "" when
// nothing matches.
func (c *Cache) FindManager(ctx context.Context, packageID, name string) (core.Manager, error) {
	lookups := []struct {
		query string
		arg   string
	}{
		{"SELECT manager FROM packages WHERE package_id = ? LIMIT 1", packageID},
		{"SELECT manager FROM packages WHERE package_id = ? COLLATE NOCASE LIMIT 1", packageID},
		{"SELECT manager FROM packages WHERE name = ? COLLATE NOCASE LIMIT 1", name},
	}

	for _, l := range lookups {
		if l.arg == "" {
			continue
		}
		var manager string
		err := c.db.QueryRowContext(ctx, l.query, l.arg).Scan(&manager)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return "", core.WrapError(core.KindCacheCorrupt, err, "manager lookup failed")
		default:
			return core.Manager(manager), nil
		}
	}
	return "", nil
}

// SyncInstalled replaces the installed view in one transaction: every row is
// marked not-installed, then each input record either updates its matching
// (package_id, manager) row or is inserted fresh under its install source.
func (c *Cache) SyncInstalled(ctx context.Context, records []core.PackageRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to begin installed sync")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE packages SET is_installed = 0, installed_version = NULL,
			install_date = NULL, install_source = NULL, install_location = NULL
		WHERE is_installed = 1`); err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to clear installed state")
	}

	update, err := tx.Prepare(`
		UPDATE packages SET is_installed = 1, installed_version = ?,
			install_date = ?, install_source = ?, install_location = ?, last_seen_at = ?
		WHERE package_id = ? AND manager = ?`)
	if err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to prepare installed update")
	}
	defer update.Close()

	insert, err := tx.Prepare(`
		INSERT INTO packages (package_id, manager, name, version, description,
			publisher, homepage, license, tags_json, search_tokens, last_seen_at,
			is_installed, installed_version, install_date, install_source, install_location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT(package_id, manager) DO UPDATE SET
			is_installed = 1,
			installed_version = excluded.installed_version,
			install_date = excluded.install_date,
			install_source = excluded.install_source,
			install_location = excluded.install_location,
			last_seen_at = excluded.last_seen_at`)
	if err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to prepare installed insert")
	}
	defer insert.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		rec.IsInstalled = true
		if rec.InstalledVersion == "" {
			rec.InstalledVersion = rec.Version
		}
		rec.Normalize()

		res, err := update.Exec(
			rec.InstalledVersion, rec.InstallDate, string(rec.InstallSource),
			rec.InstallLocation, now, rec.PackageID, string(rec.Manager))
		if err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to mark %s installed", rec.PackageID)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to mark %s installed", rec.PackageID)
		}
		if affected > 0 {
			continue
		}

		// Not in any catalog slice: store it under its install source.
		manager := rec.InstallSource
		if manager == "" {
			manager = core.ManagerUnknown
		}
		if _, err := insert.Exec(
			rec.PackageID, string(manager), rec.Name, rec.Version, rec.Description,
			rec.Publisher, rec.Homepage, rec.License, tagsJSON(rec.Tags), rec.SearchTokens,
			now, rec.InstalledVersion, rec.InstallDate, string(rec.InstallSource), rec.InstallLocation,
		); err != nil {
			return core.WrapError(core.KindCacheCorrupt, err, "failed to insert installed %s", rec.PackageID)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to commit installed sync")
	}
	return nil
}

// WriteSyncMetadata upserts the per-provider sync row.
func (c *Cache) WriteSyncMetadata(ctx context.Context, meta core.SyncMetadata) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (provider, started_at, finished_at, status, package_count, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			status = excluded.status,
			package_count = excluded.package_count,
			error_message = excluded.error_message`,
		string(meta.Provider),
		meta.StartedAt.UTC().Format(time.RFC3339),
		meta.FinishedAt.UTC().Format(time.RFC3339),
		string(meta.Status),
		meta.PackageCount,
		meta.ErrorMessage)
	if err != nil {
		return core.WrapError(core.KindCacheCorrupt, err, "failed to write sync metadata")
	}
	return nil
}

// Freshness reports a provider's sync state. Providers that never synced
// get a zero-valued entry.
func (c *Cache) Freshness(ctx context.Context, provider core.Manager) (core.Freshness, error) {
	f := core.Freshness{Provider: provider}

	var finishedAt, status string
	err := c.db.QueryRowContext(ctx, `
		SELECT COALESCE(finished_at, ''), COALESCE(status, ''), package_count
		FROM sync_metadata WHERE provider = ?`, string(provider)).
		Scan(&finishedAt, &status, &f.PackageCount)
	switch {
	case err == sql.ErrNoRows:
		return f, nil
	case err != nil:
		return f, core.WrapError(core.KindCacheCorrupt, err, "failed to read sync metadata")
	}

	f.Status = core.SyncStatus(status)
	if finishedAt != "" {
		if t, err := time.Parse(time.RFC3339, finishedAt); err == nil {
			f.LastSyncAt = t
		}
	}
	return f, nil
}

// FreshnessSummary reports every catalog provider's sync state.
func (c *Cache) FreshnessSummary(ctx context.Context) (map[core.Manager]core.Freshness, error) {
	summary := make(map[core.Manager]core.Freshness, len(core.CatalogManagers))
	for _, m := range core.CatalogManagers {
		f, err := c.Freshness(ctx, m)
		if err != nil {
			return nil, err
		}
		summary[m] = f
	}
	return summary, nil
}

// Count returns the number of catalog rows for a manager.
func (c *Cache) Count(ctx context.Context, manager core.Manager) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM packages WHERE manager = ?", string(manager)).Scan(&n)
	if err != nil {
		return 0, core.WrapError(core.KindCacheCorrupt, err, "failed to count packages")
	}
	return n, nil
}

func (c *Cache) queryRecords(ctx context.Context, query string, args ...any) ([]core.PackageRecord, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.KindCacheCorrupt, err, "cache query failed")
	}
	defer rows.Close()

	var records []core.PackageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (core.PackageRecord, error) {
	var rec core.PackageRecord
	var manager, tags, lastSeen, source string
	var installed int

	if err := rows.Scan(
		&rec.PackageID, &manager, &rec.Name, &rec.Version, &rec.Description,
		&rec.Publisher, &rec.Homepage, &rec.License, &tags, &rec.SearchTokens,
		&lastSeen, &installed, &rec.InstalledVersion, &rec.InstallDate,
		&source, &rec.InstallLocation,
	); err != nil {
		return rec, core.WrapError(core.KindCacheCorrupt, err, "failed to scan package row")
	}

	rec.Manager = core.Manager(manager)
	rec.InstallSource = core.Manager(source)
	rec.IsInstalled = installed != 0
	if tags != "" {
		_ = json.Unmarshal([]byte(tags), &rec.Tags)
	}
	if lastSeen != "" {
		if t, err := time.Parse(time.RFC3339, lastSeen); err == nil {
			rec.LastSeenAt = t
		}
	}
	return rec, nil
}

func tagsJSON(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

package cache

// Schema migrations, applied in order and stamped through PRAGMA
// user_version. Migrations must stay additive: existing rows survive every
// upgrade.
var migrations = []string{
	// v1: base schema.
	`
CREATE TABLE IF NOT EXISTS packages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package_id TEXT NOT NULL,
    manager TEXT NOT NULL,
    name TEXT NOT NULL,
    version TEXT,
    description TEXT,
    publisher TEXT,
    homepage TEXT,
    license TEXT,
    tags_json TEXT,
    search_tokens TEXT,
    last_seen_at TEXT,
    is_installed INTEGER NOT NULL DEFAULT 0,
    installed_version TEXT,
    install_date TEXT,
    install_source TEXT,
    install_location TEXT,
    UNIQUE(package_id, manager)
);

CREATE VIRTUAL TABLE IF NOT EXISTS packages_fts USING fts5(
    package_id,
    name,
    description,
    tags,
    search_tokens,
    content='packages',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS packages_fts_insert AFTER INSERT ON packages BEGIN
    INSERT INTO packages_fts(rowid, package_id, name, description, tags, search_tokens)
    VALUES (new.id, new.package_id, new.name, new.description, new.tags_json, new.search_tokens);
END;

CREATE TRIGGER IF NOT EXISTS packages_fts_delete AFTER DELETE ON packages BEGIN
    INSERT INTO packages_fts(packages_fts, rowid, package_id, name, description, tags, search_tokens)
    VALUES ('delete', old.id, old.package_id, old.name, old.description, old.tags_json, old.search_tokens);
END;

CREATE TRIGGER IF NOT EXISTS packages_fts_update AFTER UPDATE ON packages BEGIN
    INSERT INTO packages_fts(packages_fts, rowid, package_id, name, description, tags, search_tokens)
    VALUES ('delete', old.id, old.package_id, old.name, old.description, old.tags_json, old.search_tokens);
    INSERT INTO packages_fts(rowid, package_id, name, description, tags, search_tokens)
    VALUES (new.id, new.package_id, new.name, new.description, new.tags_json, new.search_tokens);
END;

CREATE TABLE IF NOT EXISTS sync_metadata (
    provider TEXT PRIMARY KEY,
    started_at TEXT,
    finished_at TEXT,
    status TEXT,
    package_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT
);

CREATE TABLE IF NOT EXISTS package_versions (
    package_id TEXT NOT NULL,
    manager TEXT NOT NULL,
    version TEXT NOT NULL,
    PRIMARY KEY (package_id, manager, version)
);

CREATE INDEX IF NOT EXISTS idx_packages_manager_installed ON packages(manager, is_installed);
CREATE INDEX IF NOT EXISTS idx_packages_install_source ON packages(install_source);
CREATE INDEX IF NOT EXISTS idx_packages_package_id ON packages(package_id);
`,
}

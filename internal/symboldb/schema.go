// Package symboldb implements the per-workspace SQL symbol database (spec
// §4.3, component C3): files, symbols, identifiers, relationships, and
// symbol embeddings, with recursive-CTE call-path queries.
package symboldb

const schema = `
CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	language TEXT NOT NULL,
	size INTEGER NOT NULL,
	last_modified INTEGER NOT NULL,
	content_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	language TEXT NOT NULL,
	file_path TEXT NOT NULL REFERENCES files(path),
	start_line INTEGER NOT NULL,
	start_col INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_col INTEGER NOT NULL,
	signature TEXT,
	parent_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_name_lower ON symbols(LOWER(name));
CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);

CREATE TABLE IF NOT EXISTS identifiers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	language TEXT NOT NULL,
	file_path TEXT NOT NULL REFERENCES files(path),
	start_line INTEGER NOT NULL,
	start_col INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_col INTEGER NOT NULL,
	code_context TEXT,
	containing_symbol_id TEXT,
	target_symbol_id TEXT,
	confidence REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_identifiers_name ON identifiers(name);
CREATE INDEX IF NOT EXISTS idx_identifiers_name_lower ON identifiers(LOWER(name));
CREATE INDEX IF NOT EXISTS idx_identifiers_file_path ON identifiers(file_path);
CREATE INDEX IF NOT EXISTS idx_identifiers_containing ON identifiers(containing_symbol_id);
CREATE INDEX IF NOT EXISTS idx_identifiers_kind ON identifiers(kind);

CREATE TABLE IF NOT EXISTS relationships (
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	PRIMARY KEY (from_id, to_id, kind)
);

CREATE TABLE IF NOT EXISTS symbol_embeddings (
	symbol_id TEXT PRIMARY KEY REFERENCES symbols(id),
	vector BLOB NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
	path UNINDEXED,
	content,
	content='files',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS files_fts_insert AFTER INSERT ON files BEGIN
	INSERT INTO files_fts(rowid, path, content) VALUES (new.rowid, new.path, new.content);
END;

CREATE TRIGGER IF NOT EXISTS files_fts_delete AFTER DELETE ON files BEGIN
	INSERT INTO files_fts(files_fts, rowid, path, content) VALUES ('delete', old.rowid, old.path, old.content);
END;

CREATE TRIGGER IF NOT EXISTS files_fts_update AFTER UPDATE ON files BEGIN
	INSERT INTO files_fts(files_fts, rowid, path, content) VALUES ('delete', old.rowid, old.path, old.content);
	INSERT INTO files_fts(rowid, path, content) VALUES (new.rowid, new.path, new.content);
END;

CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// schemaVersion is bumped whenever the DDL above changes shape. A mismatch
// against the value recorded in schema_meta is a SchemaError: the caller
// must rebuild rather than attempt a migration.
const schemaVersion = "1"

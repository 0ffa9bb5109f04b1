package symboldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// DB is a single workspace's symbol database. One DB owns one file.
type DB struct {
	conn   *sql.DB
	path   string
	vector VectorIndex
}

// Open opens (creating if needed) the symbol database at path, enables WAL
// mode, and ensures the schema is current.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, lcierrors.New(lcierrors.Fatal, "symboldb_open", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, lcierrors.New(lcierrors.Fatal, "symboldb_open", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, lcierrors.New(lcierrors.Fatal, "symboldb_open", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.ensureSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	db.vector = newVectorIndex(conn, path)
	return db, nil
}

func (db *DB) ensureSchema() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return lcierrors.New(lcierrors.SchemaMismatch, "ensure_schema", err).
			WithFile(db.path).
			WithSuggestion("database appears corrupt or from an incompatible version; delete the .db file to rebuild")
	}

	var version string
	err := db.conn.QueryRow(`SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err := db.conn.Exec(`INSERT INTO schema_meta(key, value) VALUES ('version', ?)`, schemaVersion)
		if err != nil {
			return lcierrors.New(lcierrors.Fatal, "ensure_schema", err).WithFile(db.path)
		}
		return nil
	case err != nil:
		return lcierrors.New(lcierrors.IndexCorrupt, "ensure_schema", err).
			WithFile(db.path).
			WithSuggestion("clear the index directory and rebuild")
	case version != schemaVersion:
		return lcierrors.New(lcierrors.SchemaMismatch, "ensure_schema",
			fmt.Errorf("schema version %s on disk, engine expects %s", version, schemaVersion)).
			WithFile(db.path).
			WithSuggestion("rebuild the workspace index")
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Destroy closes the connection and removes the database file from disk,
// used when the caller must rebuild after a CorruptError/SchemaError.
func Destroy(path string) error {
	return os.Remove(path)
}

// UpsertFileSymbols runs the per-file upsert protocol from §4.3: inside one
// transaction, delete the file's existing symbols/identifiers/relationships
// and file row, insert the new snapshot, refresh FTS, and preserve
// embeddings whose (name, file, kind, signature) match an old symbol.
func (db *DB) UpsertFileSymbols(ctx context.Context, file types.FileRecord, result types.ExtractionResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	defer tx.Rollback()

	preserved, err := collectPreservableEmbeddings(ctx, tx, file.Path, result.Symbols)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE from_id IN (SELECT id FROM symbols WHERE file_path = ?) OR to_id IN (SELECT id FROM symbols WHERE file_path = ?)`, file.Path, file.Path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_embeddings WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)`, file.Path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM identifiers WHERE file_path = ?`, file.Path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, file.Path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, file.Path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO files (path, content, language, size, last_modified, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`, file.Path, file.Content, file.Language, file.SizeBytes, file.LastModifiedUnix, file.ContentHash); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}

	symStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols (id, name, kind, language, file_path, start_line, start_col, end_line, end_col, signature, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	defer symStmt.Close()

	for _, s := range result.Symbols {
		if _, err := symStmt.ExecContext(ctx, s.ID, s.Name, string(s.Kind), s.Language, s.FilePath,
			s.StartLine, s.StartCol, s.EndLine, s.EndCol, nullString(s.Signature), nullString(s.ParentID)); err != nil {
			return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
		}
	}

	idStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO identifiers (id, name, kind, language, file_path, start_line, start_col, end_line, end_col, code_context, containing_symbol_id, target_symbol_id, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	defer idStmt.Close()

	for _, id := range result.Identifiers {
		if _, err := idStmt.ExecContext(ctx, id.ID, id.Name, string(id.Kind), id.Language, id.FilePath,
			id.StartLine, id.StartCol, id.EndLine, id.EndCol, nullString(id.CodeContext),
			nullString(id.ContainingSymbolID), nullString(id.ResolvedTargetSymbol), id.Confidence); err != nil {
			return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
		}
	}

	relStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO relationships (from_id, to_id, kind) VALUES (?, ?, ?)
	`)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	defer relStmt.Close()

	for _, r := range result.Relationships {
		if _, err := relStmt.ExecContext(ctx, r.FromSymbolID, r.ToSymbolID, string(r.Kind)); err != nil {
			return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
		}
	}

	if err := restorePreservedEmbeddings(ctx, tx, result.Symbols, preserved); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}

	if err := tx.Commit(); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "upsert_file_symbols", err).WithFile(file.Path)
	}
	return nil
}

// DeleteFile removes a file's symbols, identifiers, relationships, and
// embeddings entirely, for when the file itself has been deleted from
// disk (§4.9, the watcher's deletion path) rather than merely edited.
func (db *DB) DeleteFile(ctx context.Context, path string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "delete_file", err).WithFile(path)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE from_id IN (SELECT id FROM symbols WHERE file_path = ?) OR to_id IN (SELECT id FROM symbols WHERE file_path = ?)`, path, path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "delete_file", err).WithFile(path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_embeddings WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)`, path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "delete_file", err).WithFile(path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM identifiers WHERE file_path = ?`, path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "delete_file", err).WithFile(path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "delete_file", err).WithFile(path)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "delete_file", err).WithFile(path)
	}

	if err := tx.Commit(); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "delete_file", err).WithFile(path)
	}
	return nil
}

// preservedEmbedding keys an embedding blob by the identity tuple used to
// decide whether a re-extracted symbol is "the same" symbol across edits.
type preservedEmbedding struct {
	name, kind, signature string
	vector                []byte
}

func embeddingKey(name, kind, signature string) string {
	return name + "\x00" + kind + "\x00" + signature
}

func collectPreservableEmbeddings(ctx context.Context, tx *sql.Tx, path string, newSymbols []types.Symbol) ([]preservedEmbedding, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT s.name, s.kind, COALESCE(s.signature, ''), e.vector
		FROM symbol_embeddings e
		JOIN symbols s ON s.id = e.symbol_id
		WHERE s.file_path = ?
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []preservedEmbedding
	for rows.Next() {
		var p preservedEmbedding
		if err := rows.Scan(&p.name, &p.kind, &p.signature, &p.vector); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func restorePreservedEmbeddings(ctx context.Context, tx *sql.Tx, newSymbols []types.Symbol, preserved []preservedEmbedding) error {
	if len(preserved) == 0 {
		return nil
	}
	byKey := make(map[string][]byte, len(preserved))
	for _, p := range preserved {
		byKey[embeddingKey(p.name, p.kind, p.signature)] = p.vector
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO symbol_embeddings (symbol_id, vector) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range newSymbols {
		key := embeddingKey(s.Name, string(s.Kind), s.Signature)
		vec, ok := byKey[key]
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, s.ID, vec); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// SearchFilesFTS runs a full-text query against files_fts and returns
// matching paths ordered by relevance (bm25).
func (db *DB) SearchFilesFTS(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.path FROM files_fts ft
		JOIN files f ON f.rowid = ft.rowid
		WHERE files_fts MATCH ?
		ORDER BY bm25(files_fts)
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "search_files_fts", err).WithPattern(query)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, lcierrors.New(lcierrors.TransientIO, "search_files_fts", err).WithPattern(query)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetSymbolsByName returns symbols matching name, case-folded.
func (db *DB) GetSymbolsByName(ctx context.Context, name string, caseSensitive bool) ([]types.Symbol, error) {
	clause := "name = ?"
	arg := name
	if !caseSensitive {
		clause = "LOWER(name) = LOWER(?)"
	}
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, kind, language, file_path, start_line, start_col, end_line, end_col, COALESCE(signature, ''), COALESCE(parent_id, '')
		FROM symbols WHERE %s
	`, clause), arg)
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "get_symbols_by_name", err).WithPattern(name)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func scanSymbols(rows *sql.Rows) ([]types.Symbol, error) {
	var out []types.Symbol
	for rows.Next() {
		var s types.Symbol
		var kind string
		if err := rows.Scan(&s.ID, &s.Name, &kind, &s.Language, &s.FilePath,
			&s.StartLine, &s.StartCol, &s.EndLine, &s.EndCol, &s.Signature, &s.ParentID); err != nil {
			return nil, err
		}
		s.Kind = types.SymbolKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

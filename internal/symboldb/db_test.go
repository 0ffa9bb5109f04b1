package symboldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lci/internal/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedFile(t *testing.T, db *DB, path string) {
	t.Helper()
	err := db.UpsertFileSymbols(context.Background(), types.FileRecord{
		Path:        path,
		Content:     "package main\nfunc handler() { validate() }\nfunc validate() {}\n",
		Language:    "go",
		SizeBytes:   64,
		ContentHash: "abc123",
	}, types.ExtractionResult{
		Symbols: []types.Symbol{
			{ID: path + "#handler", Name: "handler", Kind: types.SymbolFunction, Language: "go", FilePath: path, StartLine: 2, EndLine: 2},
			{ID: path + "#validate", Name: "validate", Kind: types.SymbolFunction, Language: "go", FilePath: path, StartLine: 3, EndLine: 3},
		},
		Identifiers: []types.Identifier{
			{ID: path + "#call1", Name: "validate", Kind: types.IdentifierCall, Language: "go", FilePath: path,
				StartLine: 2, ContainingSymbolID: path + "#handler"},
		},
	})
	require.NoError(t, err)
}

func TestUpsertFileSymbolsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/main.go")

	syms, err := db.GetSymbolsByName(context.Background(), "handler", true)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	require.Equal(t, types.SymbolFunction, syms[0].Kind)
}

func TestUpsertFileSymbolsReplacesOldRows(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/main.go")
	seedFile(t, db, "/repo/main.go") // re-index same file

	syms, err := db.GetSymbolsByName(context.Background(), "handler", true)
	require.NoError(t, err)
	require.Len(t, syms, 1, "re-indexing must not duplicate symbols")
}

func TestUpsertPreservesEmbeddingAcrossReindex(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/main.go")

	_, err := db.conn.Exec(`INSERT INTO symbol_embeddings (symbol_id, vector) VALUES (?, ?)`,
		"/repo/main.go#handler", encodeVector([]float32{1, 2, 3}))
	require.NoError(t, err)

	seedFile(t, db, "/repo/main.go")

	var count int
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM symbol_embeddings`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count, "embedding for an unchanged symbol identity must survive re-indexing")
}

func TestExecuteCallTraceUpwardFindsCaller(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/main.go")

	nodes, err := db.ExecuteCallTrace(context.Background(), types.DirectionUpward, "validate", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, 0, nodes[0].Depth)
	require.Equal(t, "/repo/main.go#handler", nodes[0].Identifier.ContainingSymbolID)
}

func TestExecuteCallTraceDownwardFindsCallee(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/main.go")

	nodes, err := db.ExecuteCallTrace(context.Background(), types.DirectionDownward, "handler", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "validate", nodes[0].Identifier.Name)
}

func TestExecuteCallTraceHandlesSelfRecursionWithoutInfiniteLoop(t *testing.T) {
	db := openTestDB(t)
	path := "/repo/recur.go"
	err := db.UpsertFileSymbols(context.Background(), types.FileRecord{
		Path: path, Content: "func factorial() { factorial() }", Language: "go", ContentHash: "h",
	}, types.ExtractionResult{
		Symbols: []types.Symbol{{ID: "s1", Name: "factorial", Kind: types.SymbolFunction, FilePath: path}},
		Identifiers: []types.Identifier{
			{ID: "i1", Name: "factorial", Kind: types.IdentifierCall, FilePath: path, ContainingSymbolID: "s1"},
		},
	})
	require.NoError(t, err)

	nodes, err := db.ExecuteCallTrace(context.Background(), types.DirectionUpward, "factorial", 10)
	require.NoError(t, err)
	require.Len(t, nodes, 1, "cycle detection must stop re-visiting the same identifier")
}

func TestFetchSymbolsByIDBatches(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/main.go")

	byID, err := db.FetchSymbolsByID(context.Background(), []string{"/repo/main.go#handler", "/repo/main.go#validate"})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	require.Equal(t, "handler", byID["/repo/main.go#handler"].Name)
}

func TestSearchFilesByPatternGlob(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/src/main.go")
	seedFile(t, db, "/repo/src/util_test.go")

	matches, err := db.SearchFilesByPattern(context.Background(), []string{"**/*.go", "!**/*_test.go"})
	require.NoError(t, err)
	require.Equal(t, []string{"/repo/src/main.go"}, matches)
}

func TestSearchFilesFTS(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "/repo/main.go")

	paths, err := db.SearchFilesFTS(context.Background(), "validate", 10)
	require.NoError(t, err)
	require.Contains(t, paths, "/repo/main.go")
}

func TestSearchSymbolsSemanticReportsUnavailableByDefault(t *testing.T) {
	db := openTestDB(t)
	_, err := db.SearchSymbolsSemantic(context.Background(), []float32{1, 2, 3}, 5)
	require.ErrorIs(t, err, ErrSemanticUnavailable)
}

func TestBulkEmbedMissingReportsUnavailableByDefault(t *testing.T) {
	db := openTestDB(t)
	_, _, err := db.BulkEmbedMissing(context.Background(), 10, func(ctx context.Context, ids, texts []string) ([][]float32, error) {
		t.Fatal("embed callback should not run when the vector backend is unavailable")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrSemanticUnavailable)
}

func TestSchemaMismatchOnForeignFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-db.db")
	// Writing garbage to mimic a corrupt/foreign file is exercised via a
	// deliberately malformed schema_meta row instead of raw bytes, since
	// sqlite tolerates arbitrary empty files as a fresh database.
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.conn.Exec(`UPDATE schema_meta SET value = '999' WHERE key = 'version'`)
	require.NoError(t, err)
	db.Close()

	_, err = Open(path)
	require.Error(t, err)
}

package callpath

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lci/internal/symboldb"
	"github.com/standardbeagle/lci/internal/types"
)

func openTestStore(t *testing.T) *symboldb.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := symboldb.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCallGraph(t *testing.T, db *symboldb.DB, path string) {
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

func TestTraceUpwardHydratesContainingSymbol(t *testing.T) {
	db := openTestStore(t)
	seedCallGraph(t, db, "/repo/main.go")

	tracer := New(db, nil)
	nodes, err := tracer.TraceUpward(context.Background(), "validate", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.NotNil(t, nodes[0].ContainingSymbol)
	require.Equal(t, "handler", nodes[0].ContainingSymbol.Name)
}

func TestTraceDownwardFindsCallee(t *testing.T) {
	db := openTestStore(t)
	seedCallGraph(t, db, "/repo/main.go")

	tracer := New(db, nil)
	nodes, err := tracer.TraceDownward(context.Background(), "handler", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "validate", nodes[0].Identifier.Name)
}

func TestTraceUpwardHandlesSelfRecursionWithoutInfiniteLoop(t *testing.T) {
	db := openTestStore(t)
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

	tracer := New(db, nil)
	nodes, err := tracer.TraceUpward(context.Background(), "factorial", 10)
	require.NoError(t, err)
	require.Len(t, nodes, 1, "cycle detection must stop re-visiting the same identifier")
}

func TestTraceWithoutEmbedderSkipsSemanticBridge(t *testing.T) {
	db := openTestStore(t)
	seedCallGraph(t, db, "/repo/main.go")

	tracer := New(db, nil)
	nodes, err := tracer.TraceUpward(context.Background(), "validate", 5)
	require.NoError(t, err)
	for _, n := range nodes {
		require.False(t, n.IsSemanticMatch)
	}
}

func TestTraceBothRunsConcurrently(t *testing.T) {
	db := openTestStore(t)
	seedCallGraph(t, db, "/repo/main.go")

	tracer := New(db, nil)
	upward, downward, err := tracer.TraceBoth(context.Background(), "handler", 5)
	require.NoError(t, err)
	require.Empty(t, upward, "handler has no callers in the fixture")
	require.Len(t, downward, 1)
	require.Equal(t, "validate", downward[0].Identifier.Name)
}

// fakeStore lets the semantic-bridge filtering logic be tested
// deterministically without a real sqlite-vec build.
type fakeStore struct {
	trace   []types.CallPathNode
	symbols map[string]*types.Symbol
	matches []symboldb.VectorMatch
}

func (f *fakeStore) ExecuteCallTrace(ctx context.Context, dir types.CallDirection, symbolName string, maxDepth int) ([]types.CallPathNode, error) {
	return f.trace, nil
}

func (f *fakeStore) FetchSymbolsByID(ctx context.Context, ids []string) (map[string]*types.Symbol, error) {
	out := make(map[string]*types.Symbol, len(ids))
	for _, id := range ids {
		if s, ok := f.symbols[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) SearchSymbolsSemantic(ctx context.Context, queryVector []float32, k int) ([]symboldb.VectorMatch, error) {
	return f.matches, nil
}

type fakeEmbedder struct{ lastText string }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.lastText = text
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestSemanticBridgeFiltersBySimilarityAndDedupes(t *testing.T) {
	store := &fakeStore{
		trace: []types.CallPathNode{
			{Identifier: types.Identifier{ID: "id-1", Name: "validate", ContainingSymbolID: "sym-handler"}, Depth: 0},
		},
		symbols: map[string]*types.Symbol{
			"sym-handler": {ID: "sym-handler", Name: "handler"},
		},
		matches: []symboldb.VectorMatch{
			{Symbol: types.Symbol{ID: "sym-handler", Name: "handler"}, Similarity: 0.95}, // already in tier-1, dropped
			{Symbol: types.Symbol{ID: "sym-other", Name: "checkInput"}, Similarity: 0.9}, // kept
			{Symbol: types.Symbol{ID: "sym-low", Name: "unrelated"}, Similarity: 0.5},    // below threshold, dropped
		},
	}
	embedder := &fakeEmbedder{}
	tracer := New(store, embedder)

	nodes, err := tracer.TraceUpward(context.Background(), "validate", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 2, "tier-1 result plus exactly one surviving semantic-bridge match")

	var bridge *types.CallPathNode
	for i := range nodes {
		if nodes[i].IsSemanticMatch {
			bridge = &nodes[i]
		}
	}
	require.NotNil(t, bridge, "the semantic bridge result must be present")
	require.Equal(t, "checkInput", bridge.TargetSymbol.Name)
	require.InDelta(t, 0.9, bridge.Confidence, 0.0001)
	require.Contains(t, embedder.lastText, "validate")
	require.Contains(t, embedder.lastText, "handler")
}

func TestSelectBestImplementationPrefersNonInterfaceWithBody(t *testing.T) {
	candidates := []types.Symbol{
		{ID: "a", Name: "Runner", FilePath: "IRunner.go", StartLine: 1, EndLine: 2},
		{ID: "b", Name: "Runner", FilePath: "runner_impl.go", StartLine: 1, EndLine: 40},
	}
	best := SelectBestImplementation(candidates)
	require.NotNil(t, best)
	require.Equal(t, "b", best.ID)
}

func TestSelectBestImplementationFallsBackToLargestSpan(t *testing.T) {
	candidates := []types.Symbol{
		{ID: "a", Name: "Runner", FilePath: "runner_a.go", StartLine: 1, EndLine: 2},
		{ID: "b", Name: "Runner", FilePath: "runner_b.go", StartLine: 1, EndLine: 1},
	}
	best := SelectBestImplementation(candidates)
	require.NotNil(t, best)
	require.Equal(t, "a", best.ID)
}

func TestSelectBestImplementationSingleCandidate(t *testing.T) {
	candidates := []types.Symbol{{ID: "only", Name: "Runner"}}
	best := SelectBestImplementation(candidates)
	require.Equal(t, "only", best.ID)
}

func TestSelectBestImplementationEmpty(t *testing.T) {
	require.Nil(t, SelectBestImplementation(nil))
}

package main

import (
	"context"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/hybrid"
	"github.com/standardbeagle/lci/internal/symboldb"
)

// fileTextSearcher adapts the Symbol DB's FTS5 file search to
// hybrid.LexicalSearcher. Results come back already ranked by the SQL
// engine's bm25 ordering, so rank position alone is enough to derive a
// descending synthetic score for fusion.
type fileTextSearcher struct {
	db *symboldb.DB
}

func (s *fileTextSearcher) SearchText(ctx context.Context, query string, limit int) ([]hybrid.RankedPath, error) {
	paths, err := s.db.SearchFilesFTS(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]hybrid.RankedPath, len(paths))
	for i, p := range paths {
		out[i] = hybrid.RankedPath{Path: p, Score: 1.0 - float64(i)/float64(len(paths)+1)}
	}
	return out, nil
}

// semanticSearcher adapts Symbol DB's vector search to
// hybrid.SemanticSearcher. No embedding provider is wired into this
// binary (spec §6: the embedder is an external service reached over a
// process/HTTP boundary this module doesn't own), so every call reports
// "unavailable" and hybrid.Searcher degrades to LexicalOnly-Fallback,
// exactly the behavior spec §8 scenario 5 requires.
type semanticSearcher struct {
	db *symboldb.DB
}

var errNoEmbeddingProvider = lcierrors.New(lcierrors.DependencyUnavail, "hybrid_search", nil).
	WithSuggestion("configure an embedding provider to enable the semantic search leg")

func (s *semanticSearcher) SearchSemantic(ctx context.Context, query string, limit int) ([]hybrid.RankedPath, error) {
	return nil, errNoEmbeddingProvider
}

// Package callpath implements the Call-Path Tracer (spec §4.10,
// component C10): upward/downward traversal of the identifier graph,
// concurrent bidirectional tracing, a tier-3 cross-language semantic
// bridge, and disambiguation among same-name implementations. The
// recursive CTE execution itself lives in internal/symboldb — this
// package owns everything downstream of that raw traversal, generalizing
// the teacher's internal/core/reference_tracker.go and
// graph_propagator.go traversal/selection idiom onto C3's SQL-backed
// graph instead of an in-memory one.
package callpath

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lci/internal/semantic"
	"github.com/standardbeagle/lci/internal/symboldb"
	"github.com/standardbeagle/lci/internal/types"
)

// Store is the subset of the Symbol DB's API the tracer needs.
type Store interface {
	ExecuteCallTrace(ctx context.Context, dir types.CallDirection, symbolName string, maxDepth int) ([]types.CallPathNode, error)
	FetchSymbolsByID(ctx context.Context, ids []string) (map[string]*types.Symbol, error)
	SearchSymbolsSemantic(ctx context.Context, queryVector []float32, k int) ([]symboldb.VectorMatch, error)
}

// Embedder produces a query vector for the tier-3 semantic bridge. The
// embedding provider itself lives outside this module (spec §6).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const (
	semanticBridgeK              = 20
	semanticBridgeMinSimilarity  = 0.7
	semanticBridgeMaxContextName = 3
)

// Tracer drives upward/downward/both traversals and the semantic bridge.
type Tracer struct {
	store    Store
	embedder Embedder
	fuzzy    *semantic.FuzzyMatcher
}

// New builds a Tracer. embedder may be nil: without one, tier-3 semantic
// bridging is skipped and only exact-match results are returned.
func New(store Store, embedder Embedder) *Tracer {
	return &Tracer{
		store:    store,
		embedder: embedder,
		fuzzy:    semantic.NewFuzzyMatcher(true, 0.8, "jaro-winkler"),
	}
}

// TraceUpward returns callers of symbolName, exact matches first
// (depth, file_path) then any semantic-bridge matches appended after.
func (t *Tracer) TraceUpward(ctx context.Context, symbolName string, maxDepth int) ([]types.CallPathNode, error) {
	return t.trace(ctx, types.DirectionUpward, symbolName, maxDepth)
}

// TraceDownward returns callees of symbolName.
func (t *Tracer) TraceDownward(ctx context.Context, symbolName string, maxDepth int) ([]types.CallPathNode, error) {
	return t.trace(ctx, types.DirectionDownward, symbolName, maxDepth)
}

// TraceBoth runs the upward and downward traversals concurrently (spec
// §4.10: "Upward and downward queries are run concurrently in trace_both").
func (t *Tracer) TraceBoth(ctx context.Context, symbolName string, maxDepth int) (upward, downward []types.CallPathNode, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		upward, e = t.TraceUpward(gctx, symbolName, maxDepth)
		return e
	})
	g.Go(func() error {
		var e error
		downward, e = t.TraceDownward(gctx, symbolName, maxDepth)
		return e
	})
	err = g.Wait()
	return upward, downward, err
}

func (t *Tracer) trace(ctx context.Context, dir types.CallDirection, symbolName string, maxDepth int) ([]types.CallPathNode, error) {
	nodes, err := t.store.ExecuteCallTrace(ctx, dir, symbolName, maxDepth)
	if err != nil {
		return nil, redactedErr(err)
	}
	if err := t.hydrate(ctx, nodes); err != nil {
		return nil, err
	}
	sortByDepthThenFile(nodes)

	bridged, err := t.semanticBridge(ctx, dir, symbolName, nodes)
	if err != nil {
		// a failed semantic tier never drops the exact-match tier (§7
		// "a query that fails on one tier still returns whatever the
		// other tier produced").
		return nodes, nil
	}
	return append(nodes, bridged...), nil
}

// hydrate fills in ContainingSymbol/TargetSymbol for each node with one
// batched lookup instead of N+1 queries.
func (t *Tracer) hydrate(ctx context.Context, nodes []types.CallPathNode) error {
	idSet := make(map[string]bool)
	for _, n := range nodes {
		if n.Identifier.ContainingSymbolID != "" {
			idSet[n.Identifier.ContainingSymbolID] = true
		}
		if n.Identifier.ResolvedTargetSymbol != "" {
			idSet[n.Identifier.ResolvedTargetSymbol] = true
		}
	}
	if len(idSet) == 0 {
		return nil
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	byID, err := t.store.FetchSymbolsByID(ctx, ids)
	if err != nil {
		return err
	}
	for i := range nodes {
		if s, ok := byID[nodes[i].Identifier.ContainingSymbolID]; ok {
			nodes[i].ContainingSymbol = s
		}
		if s, ok := byID[nodes[i].Identifier.ResolvedTargetSymbol]; ok {
			nodes[i].TargetSymbol = s
		}
	}
	return nil
}

// semanticBridge builds a query string from symbolName plus up to 3
// existing containing-symbol names already found in tier-1, embeds it,
// ANN-searches with k=20, filters by similarity >= 0.7, and drops
// anything already present in the exact-match tier (spec §4.10).
func (t *Tracer) semanticBridge(ctx context.Context, dir types.CallDirection, symbolName string, tier1 []types.CallPathNode) ([]types.CallPathNode, error) {
	if t.embedder == nil {
		return nil, nil
	}

	seen := make(map[string]bool, len(tier1))
	seenNames := make([]string, 0, len(tier1))
	contextNames := make([]string, 0, semanticBridgeMaxContextName)
	for _, n := range tier1 {
		seen[n.Identifier.ID] = true
		if n.Identifier.ContainingSymbolID != "" {
			seen[n.Identifier.ContainingSymbolID] = true
		}
		if n.Identifier.ResolvedTargetSymbol != "" {
			seen[n.Identifier.ResolvedTargetSymbol] = true
		}
		seenNames = append(seenNames, n.Identifier.Name)
		if n.ContainingSymbol != nil && len(contextNames) < semanticBridgeMaxContextName {
			contextNames = append(contextNames, n.ContainingSymbol.Name)
		}
	}

	queryText := symbolName
	if len(contextNames) > 0 {
		queryText = symbolName + " " + strings.Join(contextNames, " ")
	}

	vector, err := t.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	matches, err := t.store.SearchSymbolsSemantic(ctx, vector, semanticBridgeK)
	if errors.Is(err, symboldb.ErrSemanticUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var bridged []types.CallPathNode
	for _, m := range matches {
		if m.Similarity < semanticBridgeMinSimilarity || seen[m.Symbol.ID] {
			continue
		}
		// a candidate whose name is a near-identical spelling of something
		// already resolved in tier-1 is a rename/alias, not a genuine
		// cross-language bridge; the fuzzy pre-filter drops it before it
		// reaches the caller as a "semantic" finding.
		if t.fuzzy != nil && t.nameIsAliasOfSeen(m.Symbol.Name, seenNames) {
			continue
		}
		symbol := m.Symbol
		bridged = append(bridged, types.CallPathNode{
			Identifier: types.Identifier{
				ID:       m.Symbol.ID,
				Name:     m.Symbol.Name,
				Language: m.Symbol.Language,
				FilePath: m.Symbol.FilePath,
			},
			TargetSymbol:    &symbol,
			Direction:       dir,
			IsSemanticMatch: true,
			Confidence:      m.Similarity,
		})
	}
	return bridged, nil
}

// nameIsAliasOfSeen reports whether candidateName is a close lexical
// variant (case/typo-level) of any name already present in the exact-match
// tier, per go-edlib's Jaro-Winkler similarity.
func (t *Tracer) nameIsAliasOfSeen(candidateName string, seenNames []string) bool {
	for _, n := range seenNames {
		if t.fuzzy.Similarity(candidateName, n) >= 0.92 {
			return true
		}
	}
	return false
}

func sortByDepthThenFile(nodes []types.CallPathNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].Identifier.FilePath < nodes[j].Identifier.FilePath
	})
}

// isInterfaceFilename is SelectBestImplementation's filename heuristic:
// it reports whether the base name starts with capital I followed by
// another capital (e.g. "IRunner.go").
func isInterfaceFilename(filePath string) bool {
	base := filePath
	if idx := strings.LastIndexAny(filePath, "/\\"); idx >= 0 {
		base = filePath[idx+1:]
	}
	if len(base) < 2 {
		return false
	}
	return base[0] == 'I' && base[1] >= 'A' && base[1] <= 'Z'
}

// SelectBestImplementation disambiguates multiple same-name candidates
// for a downward-trace start symbol (spec §4.10): prefer non-interface
// files with at least 3 body lines, else the candidate with the largest
// line span.
func SelectBestImplementation(candidates []types.Symbol) *types.Symbol {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return &candidates[0]
	}

	var best *types.Symbol
	bestSpan := -1
	for i := range candidates {
		c := &candidates[i]
		span := c.EndLine - c.StartLine
		nonInterface := !isInterfaceFilename(c.FilePath) && span >= 3

		if best == nil {
			best = c
			bestSpan = span
			continue
		}
		bestNonInterface := !isInterfaceFilename(best.FilePath) && bestSpan >= 3

		switch {
		case nonInterface && !bestNonInterface:
			best, bestSpan = c, span
		case nonInterface == bestNonInterface && span > bestSpan:
			best, bestSpan = c, span
		}
	}
	return best
}

// redactedErr reports the failure class without the query text, per spec
// §4.3: callers only learn what kind of thing went wrong, never the
// literal SQL, which may embed a caller-supplied search pattern.
func redactedErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column"):
		return &redacted{msg: "query failed against an unexpected schema shape [query redacted]"}
	case strings.Contains(msg, "malformed"):
		return &redacted{msg: "query failed against a corrupt database [query redacted]"}
	default:
		return &redacted{msg: "query failed [query redacted]"}
	}
}

type redacted struct{ msg string }

func (r *redacted) Error() string { return r.msg }

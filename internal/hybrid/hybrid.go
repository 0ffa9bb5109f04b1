// Package hybrid implements Hybrid Search (spec §4.11, component C11):
// runs lexical and semantic searches in parallel, widening each pool to
// 2x the requested result count, and fuses the two ranked lists into one.
// Grounded on samestrin-llm-tools/internal/semantic/fusion.go's RRF and
// weighted-fusion formulas, generalized to a third multiplicative
// strategy and a per-call fallback when the semantic leg is unavailable.
package hybrid

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lci/internal/types"
)

// LexicalSearcher runs a text query against the lexical index and
// returns paths ranked best-first.
type LexicalSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]RankedPath, error)
}

// SemanticSearcher runs a query against the vector index and returns
// paths ranked best-first. Implementations report ErrUnavailable (or any
// error) when the embedding provider or vector extension isn't present;
// the fuser treats that as "semantic leg unavailable", not a hard error.
type SemanticSearcher interface {
	SearchSemantic(ctx context.Context, query string, limit int) ([]RankedPath, error)
}

// RankedPath is one hit from either leg, pre-fusion.
type RankedPath struct {
	Path  string
	Score float64
}

type Strategy string

const (
	StrategyLinear         Strategy = "linear"
	StrategyRRF            Strategy = "rrf"
	StrategyMultiplicative Strategy = "multiplicative"
)

type Config struct {
	Strategy        Strategy
	LexicalWeight   float64
	SemanticWeight  float64
	BothFoundBoost  float64
	RRFRankConstant int
	Overfetch       int // multiplier applied to max_results before fusion
}

func defaultConfig() Config {
	return Config{
		Strategy:        StrategyLinear,
		LexicalWeight:   0.5,
		SemanticWeight:  0.5,
		BothFoundBoost:  1.2,
		RRFRankConstant: 60,
		Overfetch:       2,
	}
}

// Searcher is the C11 entry point: Search fuses lexical and semantic
// results for one query.
type Searcher struct {
	lexical  LexicalSearcher
	semantic SemanticSearcher
	cfg      Config
}

func New(lexical LexicalSearcher, semantic SemanticSearcher, cfg Config) *Searcher {
	if cfg.Strategy == "" {
		cfg = defaultConfig()
	}
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = 2
	}
	if cfg.RRFRankConstant <= 0 {
		cfg.RRFRankConstant = 60
	}
	return &Searcher{lexical: lexical, semantic: semantic, cfg: cfg}
}

// Result is a hybrid search response: the fused hits plus which strategy
// actually produced them (so a caller can surface LexicalOnly-Fallback).
type Result struct {
	Hits     []types.HybridHit
	Strategy types.FusionStrategy
}

// Search runs both legs in parallel (each overfetching maxResults by
// cfg.Overfetch) and fuses. If the semantic leg errors, the lexical leg's
// own ranking and scores are returned verbatim, tagged
// LexicalOnly-Fallback (spec §4.11).
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) (Result, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	fetchN := maxResults * s.cfg.Overfetch

	var lexHits, semHits []RankedPath
	var semErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexHits, err = s.lexical.SearchText(gctx, query, fetchN)
		return err
	})
	g.Go(func() error {
		if s.semantic == nil {
			semErr = errNoSemanticSearcher
			return nil
		}
		hits, err := s.semantic.SearchSemantic(gctx, query, fetchN)
		if err != nil {
			semErr = err
			return nil
		}
		semHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if semErr != nil {
		return Result{Hits: lexicalOnly(lexHits, maxResults), Strategy: types.FusionLexicalFallback}, nil
	}

	var hits []types.HybridHit
	var strategy types.FusionStrategy
	switch s.cfg.Strategy {
	case StrategyRRF:
		hits, strategy = fuseRRF(lexHits, semHits, s.cfg.RRFRankConstant)
	case StrategyMultiplicative:
		hits, strategy = fuseMultiplicative(lexHits, semHits, s.cfg)
	default:
		hits, strategy = fuseLinear(lexHits, semHits, s.cfg)
	}
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return Result{Hits: hits, Strategy: strategy}, nil
}

var errNoSemanticSearcher = &unavailableError{"no semantic searcher configured"}

type unavailableError struct{ msg string }

func (e *unavailableError) Error() string { return e.msg }

func lexicalOnly(lexHits []RankedPath, limit int) []types.HybridHit {
	hits := make([]types.HybridHit, 0, len(lexHits))
	for i, h := range lexHits {
		hits = append(hits, types.HybridHit{
			Path: h.Path, Score: h.Score, LexicalScore: h.Score,
			LexicalRank: i + 1, FoundInLexical: true,
		})
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

type mergedEntry struct {
	path                        string
	lexScore, semScore          float64
	lexRank, semRank            int
	foundLexical, foundSemantic bool
}

func merge(lexHits, semHits []RankedPath) map[string]*mergedEntry {
	entries := make(map[string]*mergedEntry, len(lexHits)+len(semHits))
	for i, h := range lexHits {
		entries[h.Path] = &mergedEntry{path: h.Path, lexScore: h.Score, lexRank: i + 1, foundLexical: true}
	}
	for i, h := range semHits {
		e, ok := entries[h.Path]
		if !ok {
			e = &mergedEntry{path: h.Path}
			entries[h.Path] = e
		}
		e.semScore = h.Score
		e.semRank = i + 1
		e.foundSemantic = true
	}
	return entries
}

func fuseLinear(lexHits, semHits []RankedPath, cfg Config) ([]types.HybridHit, types.FusionStrategy) {
	entries := merge(lexHits, semHits)
	hits := make([]types.HybridHit, 0, len(entries))
	for _, e := range entries {
		score := cfg.LexicalWeight*e.lexScore + cfg.SemanticWeight*e.semScore
		both := e.foundLexical && e.foundSemantic
		if both {
			score *= cfg.BothFoundBoost
		}
		hits = append(hits, toHit(e, score, both))
	}
	sortByScore(hits)
	return hits, types.FusionLinear
}

func fuseRRF(lexHits, semHits []RankedPath, k int) ([]types.HybridHit, types.FusionStrategy) {
	entries := merge(lexHits, semHits)
	hits := make([]types.HybridHit, 0, len(entries))
	for _, e := range entries {
		var score float64
		if e.foundLexical {
			score += 1.0 / float64(k+e.lexRank)
		}
		if e.foundSemantic {
			score += 1.0 / float64(k+e.semRank)
		}
		both := e.foundLexical && e.foundSemantic
		hits = append(hits, toHit(e, score, both))
	}
	sortByScore(hits)
	return hits, types.FusionRRF
}

func fuseMultiplicative(lexHits, semHits []RankedPath, cfg Config) ([]types.HybridHit, types.FusionStrategy) {
	entries := merge(lexHits, semHits)
	hits := make([]types.HybridHit, 0, len(entries))
	for _, e := range entries {
		both := e.foundLexical && e.foundSemantic
		var score float64
		if both {
			score = e.lexScore * e.semScore * cfg.BothFoundBoost * 2
		} else {
			lexWeighted := cfg.LexicalWeight * e.lexScore
			semWeighted := cfg.SemanticWeight * e.semScore
			score = lexWeighted
			if semWeighted > score {
				score = semWeighted
			}
		}
		hits = append(hits, toHit(e, score, both))
	}
	sortByScore(hits)
	return hits, types.FusionMultiplicative
}

func toHit(e *mergedEntry, score float64, both bool) types.HybridHit {
	return types.HybridHit{
		Path: e.path, Score: score,
		LexicalScore: e.lexScore, SemanticScore: e.semScore,
		LexicalRank: e.lexRank, SemanticRank: e.semRank,
		FoundInLexical: e.foundLexical, FoundInSemantic: e.foundSemantic,
		FoundInBoth: both,
	}
}

func sortByScore(hits []types.HybridHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Path < hits[j].Path
	})
}

// Package pipeline implements the Indexing Pipeline (spec §4.8,
// component C8): walks a workspace tree, reads each file, builds its
// lexical document, invokes the external symbol extractor, and hands the
// results to the Symbol DB (C3) and the Batch Indexer (C5). It
// generalizes the teacher's internal/indexing/pipeline*.go phase split
// (scan -> process -> emit -> progress) onto the new domain's document
// and symbol shapes.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	lcidebug "github.com/standardbeagle/lci/internal/debug"
	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/extractor"
	"github.com/standardbeagle/lci/internal/pressure"
	"github.com/standardbeagle/lci/internal/semantic"
	"github.com/standardbeagle/lci/internal/types"
)

// SymbolUpserter is the subset of the Symbol DB's API the pipeline needs.
type SymbolUpserter interface {
	UpsertFileSymbols(ctx context.Context, file types.FileRecord, result types.ExtractionResult) error
}

// DocumentEnqueuer is the subset of the Batch Indexer's API the pipeline
// needs. A narrow interface here, rather than importing batchindex
// directly, keeps the pipeline testable with an in-memory fake.
type DocumentEnqueuer interface {
	AddDocument(ctx context.Context, ws types.Workspace, doc types.LexicalDocument) error
}

// IndexExistsChecker lets the pipeline apply the skip-if-fresh
// short-circuit (§4.8) without importing the Lexical Index Manager.
type IndexExistsChecker interface {
	IndexExists(ws types.Workspace) bool
}

// Config holds the filtering and sizing knobs the pipeline needs out of
// the engine's configuration (internal/config.Config's Index/Include/
// Exclude/Performance sections).
type Config struct {
	MaxFileSize      int64
	Include          []string
	Exclude          []string
	Concurrency      int  // 0 = pressure.Monitor decides, falling back to 4
	RespectGitignore bool // honor a .gitignore at the workspace root, in addition to Exclude
}

// Stats summarizes one IndexWorkspace run.
type Stats struct {
	FilesScanned int
	FilesIndexed int
	FilesSkipped int
	Errors       []error
}

// Pipeline drives one workspace's full or incremental index build.
type Pipeline struct {
	extractor extractor.Extractor
	symbols   SymbolUpserter
	docs      DocumentEnqueuer
	existence IndexExistsChecker
	pressure  *pressure.Monitor
	cfg       Config
	stemmer   *semantic.Stemmer
}

// New builds a Pipeline. existence and mon may be nil: without existence
// the skip-if-fresh short-circuit never fires, and without mon
// concurrency/backpressure decisions use cfg.Concurrency (or 4) as-is.
func New(ex extractor.Extractor, symbols SymbolUpserter, docs DocumentEnqueuer, existence IndexExistsChecker, mon *pressure.Monitor, cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = types.DefaultMaxFileSize
	}
	return &Pipeline{
		extractor: ex,
		symbols:   symbols,
		docs:      docs,
		existence: existence,
		pressure:  mon,
		cfg:       cfg,
		stemmer:   semantic.NewStemmer(true, "porter2", 3, nil),
	}
}

// freshnessWindow is how recently a workspace must have been touched for
// the skip-if-fresh short-circuit to apply (§4.8).
const freshnessWindow = time.Hour

// IndexWorkspace performs a full walk-extract-emit pass over ws.Path. A
// workspace whose index already exists, was accessed within the last
// hour, and has no pending watcher delta is skipped entirely — dirty
// tells the caller (typically the file watcher, C9) whether such a delta
// exists.
func (p *Pipeline) IndexWorkspace(ctx context.Context, ws types.Workspace, dirty bool) (Stats, error) {
	if !dirty && p.existence != nil && p.existence.IndexExists(ws) && time.Since(ws.LastAccessed) < freshnessWindow {
		lcidebug.LogIndexing("skip-if-fresh: workspace %s indexed within the last hour, no pending delta", ws.Hash)
		return Stats{}, nil
	}

	if p.pressure != nil && p.pressure.ShouldThrottle(pressure.OpBatchIndexing) {
		return Stats{}, lcierrors.New(lcierrors.ResourceExhausted, "pipeline_index_workspace", nil).
			WithWorkspace(ws.Hash).
			WithSuggestion("memory pressure is High or Critical, indexing work is rejected until it subsides")
	}

	paths, err := p.scan(ws)
	if err != nil {
		return Stats{}, err
	}

	concurrency := p.cfg.Concurrency
	if p.pressure != nil {
		concurrency = p.pressure.RecommendedConcurrency(concurrency)
	}

	stats := Stats{FilesScanned: len(paths)}
	sem := make(chan struct{}, concurrency)
	g, gctx := errgroup.WithContext(ctx)

	var resultsMu sync.Mutex
	for _, path := range paths {
		path := path
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			if info, statErr := os.Stat(path); statErr == nil && info.Size() > p.cfg.MaxFileSize {
				lcidebug.LogIndexing("skipping %s: %d bytes exceeds max_file_size %d", path, info.Size(), p.cfg.MaxFileSize)
				return nil // neither indexed nor an error, so counted in FilesSkipped
			}
			err := p.IndexFile(gctx, ws, path)

			resultsMu.Lock()
			if err != nil {
				lcidebug.LogIndexing("file index failed for %s: %v", path, err)
				stats.Errors = append(stats.Errors, err)
			} else {
				stats.FilesIndexed++
			}
			resultsMu.Unlock()
			return nil // a single file's failure does not abort the workspace (§7)
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	stats.FilesSkipped = stats.FilesScanned - stats.FilesIndexed - len(stats.Errors)
	return stats, nil
}

// IndexFile runs §4.8 steps 2-5 for exactly one file: read, build the
// lexical document, extract symbols, upsert into the Symbol DB, and
// enqueue the document with the Batch Indexer. Used both by
// IndexWorkspace's worker pool and directly by the file watcher (C9) for
// a single changed file.
func (p *Pipeline) IndexFile(ctx context.Context, ws types.Workspace, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "pipeline_index_file", err).WithFile(path)
	}
	if info.Size() > p.cfg.MaxFileSize {
		lcidebug.LogIndexing("skipping %s: %d bytes exceeds max_file_size %d", path, info.Size(), p.cfg.MaxFileSize)
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "pipeline_index_file", err).WithFile(path)
	}

	language := languageFromExtension(filepath.Ext(path))

	extraction, err := p.extractor.Extract(ctx, path, language)
	if err != nil {
		lcidebug.LogIndexing("extractor failed for %s, indexing lexically only: %v", path, err)
		extraction = types.ExtractionResult{}
	}
	extraction.Relationships = append(extraction.Relationships, inferStructuralRelationships(extraction.Symbols)...)

	record := types.FileRecord{
		Path:             path,
		Content:          string(content),
		Language:         language,
		SizeBytes:        info.Size(),
		LastModifiedUnix: info.ModTime().Unix(),
		ContentHash:      contentHash(content),
	}
	if p.symbols != nil {
		if err := p.symbols.UpsertFileSymbols(ctx, record, extraction); err != nil {
			return err
		}
	}

	doc := p.buildLexicalDocument(path, string(content), extraction)
	if p.docs != nil {
		if err := p.docs.AddDocument(ctx, ws, doc); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) buildLexicalDocument(path, content string, extraction types.ExtractionResult) types.LexicalDocument {
	symbolNames := make([]string, 0, len(extraction.Symbols))
	for _, s := range extraction.Symbols {
		symbolNames = append(symbolNames, s.Name)
	}

	return types.LexicalDocument{
		ID:             path,
		Path:           path,
		Filename:       filepath.Base(path),
		Extension:      filepath.Ext(path),
		Content:        content,
		ContentLiteral: content,
		ContentCode:    p.stemCode(content),
		ContentSymbols: strings.Join(symbolNames, " "),
		LineBreaks:     lineBreaks(content),
	}
}

func (p *Pipeline) stemCode(content string) string {
	words := strings.FieldsFunc(content, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '_')
	})
	stemmed := p.stemmer.StemAll(words)
	return strings.Join(stemmed, " ")
}

func lineBreaks(content string) []int {
	var offsets []int
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

func contentHash(content []byte) string {
	h := xxhash.Sum64(content)
	return xxhashToHex(h)
}

func xxhashToHex(h uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[h&0xf]
		h >>= 4
	}
	return string(buf)
}

// inferStructuralRelationships scans signatures for extends/implements
// keywords the extractor may not have resolved into edges yet — a
// language-agnostic fallback rather than a replacement for real
// extractor-side resolution.
func inferStructuralRelationships(symbols []types.Symbol) []types.Relationship {
	byName := make(map[string]string, len(symbols))
	for _, s := range symbols {
		byName[s.Name] = s.ID
	}

	var rels []types.Relationship
	for _, s := range symbols {
		if s.Signature == "" {
			continue
		}
		if target, ok := extractAfterKeyword(s.Signature, "extends"); ok {
			if targetID, found := byName[target]; found {
				rels = append(rels, types.Relationship{FromSymbolID: s.ID, ToSymbolID: targetID, Kind: types.RelExtends})
			}
		}
		if targets, ok := extractListAfterKeyword(s.Signature, "implements"); ok {
			for _, target := range targets {
				if targetID, found := byName[target]; found {
					rels = append(rels, types.Relationship{FromSymbolID: s.ID, ToSymbolID: targetID, Kind: types.RelImplements})
				}
			}
		}
	}
	return rels
}

func extractAfterKeyword(signature, keyword string) (string, bool) {
	idx := strings.Index(signature, keyword+" ")
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(signature[idx+len(keyword)+1:])
	fields := strings.FieldsFunc(rest, func(r rune) bool { return r == ' ' || r == '{' || r == ',' })
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func extractListAfterKeyword(signature, keyword string) ([]string, bool) {
	idx := strings.Index(signature, keyword+" ")
	if idx < 0 {
		return nil, false
	}
	rest := strings.TrimSpace(signature[idx+len(keyword)+1:])
	end := strings.IndexAny(rest, "{")
	if end >= 0 {
		rest = rest[:end]
	}
	var names []string
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names, len(names) > 0
}

// scan walks ws.Path, applying Exclude first (directory pruning included)
// and then Include (if non-empty, a file must match at least one
// pattern), and keeps only files whose extension is in
// extensionLanguages.
func (p *Pipeline) scan(ws types.Workspace) ([]string, error) {
	var gitignore *ignore.GitIgnore
	if p.cfg.RespectGitignore {
		if g, err := ignore.CompileIgnoreFile(filepath.Join(ws.Path, ".gitignore")); err == nil {
			gitignore = g
		}
	}

	var paths []string
	err := filepath.WalkDir(ws.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(ws.Path, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (p.matchesAny(p.cfg.Exclude, rel+"/") || (gitignore != nil && gitignore.MatchesPath(rel))) {
				return filepath.SkipDir
			}
			return nil
		}

		if p.matchesAny(p.cfg.Exclude, rel) {
			return nil
		}
		if gitignore != nil && gitignore.MatchesPath(rel) {
			return nil
		}
		if len(p.cfg.Include) > 0 && !p.matchesAny(p.cfg.Include, rel) {
			return nil
		}
		if _, ok := extensionLanguages[strings.ToLower(filepath.Ext(rel))]; !ok {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "pipeline_scan", err).WithWorkspace(ws.Hash)
	}
	return paths, nil
}

func (p *Pipeline) matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

var extensionLanguages = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".java": "java", ".rb": "ruby",
	".rs": "rust", ".c": "c", ".h": "c", ".cpp": "cpp", ".hpp": "cpp",
	".cs": "csharp", ".php": "php", ".kt": "kotlin", ".swift": "swift",
}

func languageFromExtension(ext string) string {
	if lang, ok := extensionLanguages[strings.ToLower(ext)]; ok {
		return lang
	}
	return "text"
}

// Package boost implements the Context/Boost Layer (spec §4.13,
// component C13): per-session tracking of recent file accesses and
// search queries, keyword extraction from file paths, and a multiplier
// map that nudges ranked results toward whatever the session has
// recently touched. Keyword extraction reuses
// internal/semantic.NameSplitter's camelCase/snake_case split exactly
// as the teacher's symbol indexer does for identifier names; the
// technology vocabulary is grounded on
// internal/semantic.TranslationDictionary's Abbreviations map (the same
// table the teacher's fuzzy/stemming matchers draw from), rather than
// inventing a second table.
package boost

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/standardbeagle/lci/internal/semantic"
)

// Defaults per spec §4.13: "a single match yields 1.2-1.5x boost and
// compound matches stack multiplicatively."
const (
	DefaultCurrentFileBoost = 1.5
	DefaultRecentFileBoost  = 1.3
	DefaultRecentQueryBoost = 1.2
	DefaultTechnologyBoost  = 1.2
)

const (
	DefaultMaxRecentFiles   = 20
	DefaultMaxRecentQueries = 20
)

// Config holds the multiplier values and queue bounds. Zero-value
// fields are replaced with the package defaults by New.
type Config struct {
	CurrentFileBoost float64
	RecentFileBoost  float64
	RecentQueryBoost float64
	TechnologyBoost  float64
	MaxRecentFiles   int
	MaxRecentQueries int
}

func (c Config) withDefaults() Config {
	if c.CurrentFileBoost == 0 {
		c.CurrentFileBoost = DefaultCurrentFileBoost
	}
	if c.RecentFileBoost == 0 {
		c.RecentFileBoost = DefaultRecentFileBoost
	}
	if c.RecentQueryBoost == 0 {
		c.RecentQueryBoost = DefaultRecentQueryBoost
	}
	if c.TechnologyBoost == 0 {
		c.TechnologyBoost = DefaultTechnologyBoost
	}
	if c.MaxRecentFiles <= 0 {
		c.MaxRecentFiles = DefaultMaxRecentFiles
	}
	if c.MaxRecentQueries <= 0 {
		c.MaxRecentQueries = DefaultMaxRecentQueries
	}
	return c
}

// boundedQueue is a fixed-capacity FIFO of strings; pushing past
// capacity drops the oldest entry. Safe for concurrent use.
type boundedQueue struct {
	mu       sync.Mutex
	items    []string
	capacity int
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{items: make([]string, 0, capacity), capacity: capacity}
}

func (q *boundedQueue) push(item string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, existing := range q.items {
		if existing == item {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.items = append(q.items, item)
	if len(q.items) > q.capacity {
		q.items = q.items[len(q.items)-q.capacity:]
	}
}

func (q *boundedQueue) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

// Context is one session's recency state: the file currently open, a
// bounded history of recently accessed files and recently run search
// queries, and the keyword set derived from both.
type Context struct {
	cfg Config

	splitter *semantic.NameSplitter
	techDict map[string]bool

	mu          sync.RWMutex
	currentFile string

	recentFiles   *boundedQueue
	recentQueries *boundedQueue

	keywords   map[string]bool
	keywordsMu sync.RWMutex
}

// NewContext creates an empty per-session boost context.
func NewContext(cfg Config) *Context {
	cfg = cfg.withDefaults()
	return &Context{
		cfg:           cfg,
		splitter:      semantic.NewNameSplitter(),
		techDict:      technologyVocabulary(),
		recentFiles:   newBoundedQueue(cfg.MaxRecentFiles),
		recentQueries: newBoundedQueue(cfg.MaxRecentQueries),
		keywords:      make(map[string]bool),
	}
}

// technologyVocabulary flattens TranslationDictionary's abbreviation
// keys and expansions into a single lookup set of known technology
// terms (e.g. "http", "redis", "kubernetes", "oauth").
func technologyVocabulary() map[string]bool {
	dict := semantic.DefaultTranslationDictionary()
	vocab := make(map[string]bool, 256)
	for abbrev, expansions := range dict.Abbreviations {
		vocab[abbrev] = true
		for _, word := range expansions {
			vocab[word] = true
		}
	}
	return vocab
}

// RecordFileAccess marks path as the current file, folds it into the
// recent-files queue, and extracts its keywords into the session's
// keyword set.
func (c *Context) RecordFileAccess(path string) {
	c.mu.Lock()
	c.currentFile = path
	c.mu.Unlock()

	c.recentFiles.push(path)
	c.absorbKeywords(strings.TrimSuffix(path, filepath.Ext(path)))
}

// RecordQuery folds query into the recent-queries queue and extracts
// its keywords into the session's keyword set.
func (c *Context) RecordQuery(query string) {
	c.recentQueries.push(query)
	c.absorbKeywords(query)
}

func pathKeywordSource(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *Context) absorbKeywords(text string) {
	if text == "" {
		return
	}
	words := c.splitter.SplitToSet(text)

	c.keywordsMu.Lock()
	defer c.keywordsMu.Unlock()
	for w := range words {
		c.keywords[w] = true
	}
}

// CurrentFile returns the most recently recorded file, or "" if none.
func (c *Context) CurrentFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentFile
}

// RecentFiles returns a snapshot of the bounded recent-files queue,
// oldest first.
func (c *Context) RecentFiles() []string {
	return c.recentFiles.snapshot()
}

// RecentQueries returns a snapshot of the bounded recent-queries
// queue, oldest first.
func (c *Context) RecentQueries() []string {
	return c.recentQueries.snapshot()
}

// Keywords returns a snapshot of the session's accumulated keyword
// set (union of every recorded file's and query's split words).
func (c *Context) Keywords() map[string]bool {
	c.keywordsMu.RLock()
	defer c.keywordsMu.RUnlock()
	out := make(map[string]bool, len(c.keywords))
	for k := range c.keywords {
		out[k] = true
	}
	return out
}

// GetBoosts computes a per-term multiplier for each of terms, per spec
// §4.13: each of four bonus types (current-file match, recent-file
// match, recent-query match, technology match) applies independently
// and multiplicatively, so a term matching two bonus types stacks
// both factors rather than taking the larger one.
func (c *Context) GetBoosts(terms []string) map[string]float64 {
	boosts := make(map[string]float64, len(terms))

	current := c.CurrentFile()
	currentFileWords := c.splitter.SplitToSet(pathKeywordSource(current))
	recentFiles := c.recentFiles.snapshot()
	recentQueries := c.recentQueries.snapshot()

	for _, term := range terms {
		lower := strings.ToLower(term)
		boost := 1.0

		if currentFileWords[lower] {
			boost *= c.cfg.CurrentFileBoost
		}
		if termInRecentFiles(c.splitter, recentFiles, current, lower) {
			boost *= c.cfg.RecentFileBoost
		}
		if termInRecentQueries(recentQueries, lower) {
			boost *= c.cfg.RecentQueryBoost
		}
		if c.techDict[lower] {
			boost *= c.cfg.TechnologyBoost
		}

		boosts[term] = boost
	}
	return boosts
}

// termInRecentFiles checks every recent file except the current one, which
// is already covered by the current-file bonus.
func termInRecentFiles(splitter *semantic.NameSplitter, files []string, current, term string) bool {
	for _, f := range files {
		if f == current {
			continue
		}
		if splitter.SplitToSet(pathKeywordSource(f))[term] {
			return true
		}
	}
	return false
}

func termInRecentQueries(queries []string, term string) bool {
	for _, q := range queries {
		if strings.Contains(strings.ToLower(q), term) {
			return true
		}
	}
	return false
}

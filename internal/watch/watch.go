// Package watch implements the File Watcher (spec §4.9, component C9):
// an fsnotify-backed per-path debounce that drives single-file
// re-indexing on write/create and deletion cleanup on remove. It
// generalizes the teacher's internal/indexing/watcher.go and
// debounced_rebuilder.go onto the new pipeline and symbol-store shapes.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	lcidebug "github.com/standardbeagle/lci/internal/debug"
	"github.com/standardbeagle/lci/internal/lexindex"
	"github.com/standardbeagle/lci/internal/types"
)

// FileIndexer is the subset of the pipeline's API the watcher needs to
// re-index a single changed file.
type FileIndexer interface {
	IndexFile(ctx context.Context, ws types.Workspace, path string) error
}

// SymbolDeleter is the subset of the Symbol DB's API the watcher needs
// when a file disappears entirely.
type SymbolDeleter interface {
	DeleteFile(ctx context.Context, path string) error
}

// LexicalManager is the subset of the Lexical Index Manager's API the
// watcher needs to remove a deleted file's document.
type LexicalManager interface {
	GetWriter(ctx context.Context, ws types.Workspace) (*lexindex.Writer, error)
	Commit(ctx context.Context, ws types.Workspace) error
}

// CacheEvictor is the subset of the Query Cache's API the watcher needs
// to invalidate stale cached results after a write.
type CacheEvictor interface {
	ClearWorkspace(workspaceHash string) int
}

const defaultDebounce = 100 * time.Millisecond

// Config holds the watcher's filtering and timing knobs.
type Config struct {
	Exclude  []string
	Debounce time.Duration
}

// Watcher monitors one workspace's tree and keeps the pipeline, Symbol
// DB, lexical index, and query cache in sync with on-disk changes.
type Watcher struct {
	ws     types.Workspace
	fsw    *fsnotify.Watcher
	cfg    Config
	index  FileIndexer
	dbs    SymbolDeleter
	lex    LexicalManager
	cache  CacheEvictor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]fsnotify.Op
}

// New builds a Watcher for ws. cache may be nil if no query cache is
// wired up.
func New(ws types.Workspace, index FileIndexer, dbs SymbolDeleter, lex LexicalManager, cache CacheEvictor, cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		ws:      ws,
		fsw:     fsw,
		cfg:     cfg,
		index:   index,
		dbs:     dbs,
		lex:     lex,
		cache:   cache,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]fsnotify.Op),
	}
	return w, nil
}

// Start adds recursive watches under the workspace root and begins
// processing events in the background.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.ws.Path); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.processEvents()

	lcidebug.Log("WATCH", "started for workspace %s at %s\n", w.ws.Hash, w.ws.Path)
	return nil
}

// Stop halts event processing and releases the underlying fsnotify
// watcher, waiting for any in-flight debounce timers to fire.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return err
}

func (w *Watcher) addWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && w.matchesExclude(filepath.ToSlash(rel)+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			lcidebug.Log("WATCH", "failed to add watch for %s: %v\n", path, err)
		}
		return nil
	})
}

func (w *Watcher) matchesExclude(rel string) bool {
	for _, pattern := range w.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			lcidebug.Log("WATCH", "fsnotify error: %v\n", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, relErr := filepath.Rel(w.ws.Path, event.Name)
	if relErr == nil && w.matchesExclude(filepath.ToSlash(rel)) {
		return
	}

	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.fsw.Add(event.Name); err != nil {
				lcidebug.Log("WATCH", "failed to add watch for new directory %s: %v\n", event.Name, err)
			}
		}
		return
	}

	w.scheduleDebounce(event.Name, event.Op)
}

// scheduleDebounce resets the per-path timer, matching the teacher's
// debounced_rebuilder.ScheduleRebuild pattern but keyed by path instead
// of a single global timer, since unrelated files shouldn't wait on each
// other's debounce window.
func (w *Watcher) scheduleDebounce(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] |= op
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() { w.flush(path) })
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	op, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	w.mu.Unlock()
	if !ok {
		return
	}

	if op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0 {
		w.handleRemoval(path)
		return
	}
	w.handleChange(path)
}

func (w *Watcher) handleChange(path string) {
	if _, err := os.Stat(path); err != nil {
		// the file vanished between the event firing and the debounce
		// window elapsing; treat it as a removal instead.
		w.handleRemoval(path)
		return
	}

	if err := w.index.IndexFile(w.ctx, w.ws, path); err != nil {
		lcidebug.Log("WATCH", "re-index failed for %s: %v\n", path, err)
		return
	}
	if w.cache != nil {
		w.cache.ClearWorkspace(w.ws.Hash)
	}
}

func (w *Watcher) handleRemoval(path string) {
	if w.dbs != nil {
		if err := w.dbs.DeleteFile(w.ctx, path); err != nil {
			lcidebug.Log("WATCH", "symbol delete failed for %s: %v\n", path, err)
		}
	}
	if w.lex != nil {
		writer, err := w.lex.GetWriter(w.ctx, w.ws)
		if err != nil {
			lcidebug.Log("WATCH", "failed to get writer to remove %s: %v\n", path, err)
		} else if err := writer.RemoveDocument(path); err != nil {
			lcidebug.Log("WATCH", "lexical remove failed for %s: %v\n", path, err)
		} else if err := w.lex.Commit(w.ctx, w.ws); err != nil {
			lcidebug.Log("WATCH", "commit failed after removing %s: %v\n", path, err)
		}
	}
	if w.cache != nil {
		w.cache.ClearWorkspace(w.ws.Hash)
	}
}

// Package batchindex implements the Batch Indexer (spec §4.5, component
// C5): accumulates lexical documents per workspace and flushes them into
// the Lexical Index Manager (C4) on a size or age trigger, generalizing
// the teacher's internal/indexing/debounced_rebuilder.go timer/trigger
// pattern from "rebuild a reference graph" to "flush a writer batch".
package batchindex

import (
	"context"
	"sync"
	"time"

	lcidebug "github.com/standardbeagle/lci/internal/debug"
	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/lexindex"
	"github.com/standardbeagle/lci/internal/pressure"
	"github.com/standardbeagle/lci/internal/types"
)

const shutdownBudget = 30 * time.Second

// StatisticsUpdater is the subset of the Workspace Registry's API the
// indexer needs after a flush (§4.8 step 6, "update workspace
// statistics"). A narrow interface instead of importing the registry
// package directly keeps batchindex usable in tests without a real
// on-disk registry.
type StatisticsUpdater interface {
	UpdateStatistics(ctx context.Context, hash string, documentCount int, indexSizeBytes int64) error
}

// pendingItem is one queued document. Order matters: flush applies items
// in enqueue order so a later update for the same id naturally overwrites
// an earlier one once both reach the writer (§5 ordering guarantee).
type pendingItem struct {
	id  string
	doc types.LexicalDocument
}

type workspaceBuffer struct {
	flushMu sync.Mutex // serializes Flush calls for this workspace

	mu     sync.Mutex
	ws     types.Workspace
	items  []pendingItem
	oldest time.Time
}

// Indexer owns one buffer per workspace and the age-based flush ticker.
type Indexer struct {
	manager  *lexindex.Manager
	registry StatisticsUpdater
	pressure *pressure.Monitor

	batchSize int
	maxAge    time.Duration

	buffers sync.Map // string (workspace hash) -> *workspaceBuffer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIndexer builds an Indexer. batchSize and maxAge default to the
// spec's 500 / 30s when zero.
func NewIndexer(manager *lexindex.Manager, reg StatisticsUpdater, mon *pressure.Monitor, batchSize int, maxAge time.Duration) *Indexer {
	if batchSize <= 0 {
		batchSize = 500
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		manager:   manager,
		registry:  reg,
		pressure:  mon,
		batchSize: batchSize,
		maxAge:    maxAge,
		ctx:       ctx,
		cancel:    cancel,
	}
	idx.wg.Add(1)
	go idx.ageLoop()
	return idx
}

// bufferFor returns the buffer for ws, creating it on first use. ws is
// stashed on creation so the age-triggered sweep (which only walks the
// sync.Map, not a caller-supplied workspace list) can flush on its own.
func (idx *Indexer) bufferFor(ws types.Workspace) *workspaceBuffer {
	v, _ := idx.buffers.LoadOrStore(ws.Hash, &workspaceBuffer{ws: ws})
	return v.(*workspaceBuffer)
}

// AddDocument enqueues a document for ws. If the pending buffer reaches
// batch_size, a flush is scheduled on a background goroutine immediately
// (§4.5 size trigger) rather than inline, so the caller's enqueue call
// never blocks on a full flush.
func (idx *Indexer) AddDocument(ctx context.Context, ws types.Workspace, doc types.LexicalDocument) error {
	if idx.pressure != nil && idx.pressure.ShouldThrottle(pressure.OpBatchIndexing) {
		return lcierrors.New(lcierrors.ResourceExhausted, "batchindex_add_document", nil).
			WithWorkspace(ws.Hash).
			WithSuggestion("memory pressure is High or Critical, indexing work is rejected until it subsides")
	}

	buf := idx.bufferFor(ws)
	buf.mu.Lock()
	if len(buf.items) == 0 {
		buf.oldest = time.Now()
	}
	buf.items = append(buf.items, pendingItem{id: doc.ID, doc: doc})
	shouldFlush := len(buf.items) >= idx.effectiveBatchSize()
	buf.mu.Unlock()

	if shouldFlush {
		idx.wg.Add(1)
		go func() {
			defer idx.wg.Done()
			if err := idx.Flush(idx.ctx, ws); err != nil {
				lcidebug.Log("BATCH", "size-triggered flush failed for %s: %v\n", ws.Hash, err)
			}
		}()
	}
	return nil
}

func (idx *Indexer) effectiveBatchSize() int {
	if idx.pressure == nil {
		return idx.batchSize
	}
	return idx.pressure.RecommendedBatchSize(idx.batchSize)
}

// PendingCount reports how many documents are queued for ws, for tests
// and diagnostics.
func (idx *Indexer) PendingCount(ws types.Workspace) int {
	buf := idx.bufferFor(ws)
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return len(buf.items)
}

// Flush drains ws's buffer into C4's writer and commits once. On failure
// the drained documents are restored to the *front* of the buffer (so
// they flush again before anything enqueued meanwhile) and the error is
// propagated (§4.5). Flushes of the same workspace run one at a time.
func (idx *Indexer) Flush(ctx context.Context, ws types.Workspace) error {
	buf := idx.bufferFor(ws)
	buf.flushMu.Lock()
	defer buf.flushMu.Unlock()

	buf.mu.Lock()
	items := buf.items
	buf.items = nil
	buf.mu.Unlock()

	if len(items) == 0 {
		return nil
	}

	if err := idx.flushItems(ctx, ws, items); err != nil {
		buf.mu.Lock()
		buf.items = append(append([]pendingItem{}, items...), buf.items...)
		buf.mu.Unlock()
		return err
	}
	return nil
}

func (idx *Indexer) flushItems(ctx context.Context, ws types.Workspace, items []pendingItem) error {
	w, err := idx.manager.GetWriter(ctx, ws)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := w.AddDocument(item.doc); err != nil {
			return lcierrors.New(lcierrors.Fatal, "batchindex_flush", err).WithWorkspace(ws.Hash).WithFile(item.id)
		}
	}

	if err := idx.manager.Commit(ctx, ws); err != nil {
		return err
	}

	if idx.registry != nil {
		stats, statErr := idx.manager.Statistics(ctx, ws)
		if statErr == nil {
			_ = idx.registry.UpdateStatistics(ctx, ws.Hash, stats.DocumentCount, 0)
		}
	}
	return nil
}

func (idx *Indexer) ageLoop() {
	defer idx.wg.Done()
	ticker := time.NewTicker(idx.maxAge)
	defer ticker.Stop()
	for {
		select {
		case <-idx.ctx.Done():
			return
		case <-ticker.C:
			idx.flushStaleBuffers()
		}
	}
}

// flushStaleBuffers is the age-trigger sweep (§4.5: "a periodic timer...
// flushes any buffer older than that threshold"). Each buffer remembers
// the Workspace it was created for, so the sweep can flush directly
// without a caller re-supplying workspace metadata.
func (idx *Indexer) flushStaleBuffers() {
	now := time.Now()
	idx.buffers.Range(func(_, value interface{}) bool {
		buf := value.(*workspaceBuffer)

		buf.mu.Lock()
		stale := len(buf.items) > 0 && now.Sub(buf.oldest) >= idx.maxAge
		ws := buf.ws
		buf.mu.Unlock()
		if !stale {
			return true
		}

		if err := idx.Flush(idx.ctx, ws); err != nil {
			lcidebug.Log("BATCH", "age-triggered flush failed for %s: %v\n", ws.Hash, err)
		}
		return true
	})
}

// Shutdown waits up to 30s for in-flight and pending flushes across every
// known workspace; anything still pending after that is logged and
// abandoned (§4.5).
func (idx *Indexer) Shutdown(ctx context.Context) {
	idx.cancel()

	done := make(chan struct{})
	go func() {
		idx.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownBudget):
		lcidebug.Log("BATCH", "shutdown budget exceeded, abandoning remaining flushes\n")
	}
}

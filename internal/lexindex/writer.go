package lexindex

import (
	"context"
	"sync"
	"sync/atomic"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// Writer is the single mutator of one workspace's lexical index. Exactly
// one Writer exists per workspace at a time (§4.4 "Writer lifetime");
// the Manager enforces that by handing out the same instance to every
// caller for a workspace until it is closed.
type Writer struct {
	mu         sync.Mutex
	fields     [4]*segment // Content, ContentLiteral, ContentCode, ContentSymbols
	pending    int         // documents added since the last commit
	store      *diskStore
	closed     bool
	generation atomic.Uint64
}

const (
	fieldContent = iota
	fieldLiteral
	fieldCode
	fieldSymbols
)

func newWriter(store *diskStore) *Writer {
	w := &Writer{store: store}
	for i := range w.fields {
		w.fields[i] = newSegment()
	}
	return w
}

// AddDocument indexes or re-indexes one document. It never auto-commits
// (§4.4: "commits are never automatic on add" — batching policy belongs
// to the batch indexer, component C5).
func (w *Writer) AddDocument(doc types.LexicalDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return lcierrors.New(lcierrors.Fatal, "lexindex_add_document", nil).WithFile(doc.Path)
	}

	// Re-indexing the same document must not leave stale postings behind.
	w.fields[fieldContent].removeDocumentField(doc.ID)
	w.fields[fieldLiteral].removeDocumentField(doc.ID)
	w.fields[fieldCode].removeDocumentField(doc.ID)
	w.fields[fieldSymbols].removeDocumentField(doc.ID)

	w.fields[fieldContent].mu.Lock()
	w.fields[fieldContent].docs[doc.ID] = doc
	delete(w.fields[fieldContent].deleted, doc.ID)
	w.fields[fieldContent].mu.Unlock()

	w.fields[fieldContent].addDocumentField(doc.ID, doc.Content)
	w.fields[fieldLiteral].addDocumentField(doc.ID, doc.ContentLiteral)
	w.fields[fieldCode].addDocumentField(doc.ID, doc.ContentCode)
	w.fields[fieldSymbols].addDocumentField(doc.ID, doc.ContentSymbols)

	w.pending++
	w.generation.Add(1)
	return nil
}

// RemoveDocument tombstones a document's postings across every field.
func (w *Writer) RemoveDocument(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return lcierrors.New(lcierrors.Fatal, "lexindex_remove_document", nil)
	}
	for _, seg := range w.fields {
		seg.removeDocumentField(id)
		seg.mu.Lock()
		delete(seg.docs, id)
		seg.deleted[id] = true
		seg.mu.Unlock()
	}
	w.pending++
	w.generation.Add(1)
	return nil
}

// PendingCount is how many add/remove calls have happened since the last
// commit, used by the batch indexer (C5) to decide when to flush.
func (w *Writer) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// commit persists the in-memory segments to disk and resets the pending
// counter. Called by Manager.Commit, never directly by callers, so the
// on-disk generation number stays centrally owned.
func (w *Writer) commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return lcierrors.New(lcierrors.Fatal, "lexindex_commit", nil)
	}
	if err := w.store.save(ctx, w.fields); err != nil {
		return err
	}
	w.pending = 0
	return nil
}

// optimize compacts every segment, physically dropping tombstoned
// postings instead of merely masking them.
func (w *Writer) optimize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return lcierrors.New(lcierrors.Fatal, "lexindex_optimize", nil)
	}
	content := w.fields[fieldContent]
	content.mu.RLock()
	live := make(map[string]bool, len(content.docs))
	for id := range content.docs {
		live[id] = true
	}
	content.mu.RUnlock()
	for _, seg := range w.fields {
		seg.compact(live)
	}
	return w.store.save(ctx, w.fields)
}

func (w *Writer) generationSnapshot() uint64 {
	return w.generation.Load()
}

func (w *Writer) documentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fields[fieldContent].docs)
}

func (w *Writer) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
